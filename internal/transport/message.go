// Package transport carries decoded credentials from a reader to the
// controller. The wire format is a JSON object with three base64-encoded
// fields: the raw bitstring, the decimal facility code, and the decimal
// card code. All three must be present; undecodable frames send empty
// facility/card values, never omitted fields.
package transport

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// ErrMissingField marks a wire message lacking one of the three
// mandatory fields.
var ErrMissingField = errors.New("missing message field")

// Message is the wire representation of one decoded credential. Pointer
// fields distinguish "absent" (protocol error) from "present but empty".
type Message struct {
	RawBits      *string `json:"raw_bits"`
	FacilityCode *string `json:"facility_code"`
	CardCode     *string `json:"card_code"`
}

// NewMessage encodes a credential's three fields for transport.
func NewMessage(rawBits, facilityCode, cardCode string) Message {
	enc := func(s string) *string {
		v := base64.StdEncoding.EncodeToString([]byte(s))
		return &v
	}
	return Message{
		RawBits:      enc(rawBits),
		FacilityCode: enc(facilityCode),
		CardCode:     enc(cardCode),
	}
}

// Credential decodes all three fields independently and returns the
// reconstructed credential. A nil field or invalid base64 is an error;
// the decoder side never sends partial messages, so either indicates a
// foreign or corrupted sender.
func (m Message) Credential() (types.Credential, error) {
	dec := func(name string, field *string) (string, error) {
		if field == nil {
			return "", fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		b, err := base64.StdEncoding.DecodeString(*field)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", name, err)
		}
		return string(b), nil
	}

	raw, err := dec("raw_bits", m.RawBits)
	if err != nil {
		return types.Credential{}, err
	}
	fc, err := dec("facility_code", m.FacilityCode)
	if err != nil {
		return types.Credential{}, err
	}
	cc, err := dec("card_code", m.CardCode)
	if err != nil {
		return types.Credential{}, err
	}

	return types.Credential{RawBits: raw, FacilityCode: fc, CardCode: cc}, nil
}
