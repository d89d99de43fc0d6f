package types

// Credential is a card read delivered by a reader, after Wiegand decoding.
// FacilityCode and CardCode are decimal strings and are empty when the
// frame length was not in the known format table; RawBits is always set.
type Credential struct {
	RawBits      string
	FacilityCode string
	CardCode     string
}

// Key returns the identifier used to look the credential up in the
// directory: the decimal card code when the frame decoded, otherwise the
// raw bitstring (undecodable formats can still be matched verbatim).
func (c Credential) Key() string {
	if c.CardCode != "" {
		return c.CardCode
	}
	return c.RawBits
}

// Decoded reports whether the field decomposition succeeded.
func (c Credential) Decoded() bool {
	return c.CardCode != ""
}
