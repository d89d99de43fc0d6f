package wiegand

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedBitCount is returned by DecodeCard for frame lengths not
// in the known format table. The returned Card still carries the raw
// bits so callers can forward them for logging or verbatim matching.
var ErrUnsupportedBitCount = errors.New("unsupported bit count")

// Card is the field decomposition of a Wiegand frame. For unsupported
// frame lengths only BitCount and Bits are populated.
type Card struct {
	BitCount     int
	Bits         string
	FacilityCode uint32
	CardCode     uint32
}

// Field layout per supported format. Ranges are half-open bit indexes
// counted from the first-received (most significant) bit; the bits
// outside them are parity, which this codec does not verify.
//
//	35-bit: facility bits[2:14), card bits[14:34)
//	26-bit: facility bits[1:9),  card bits[9:25)
type format struct {
	facilityLo, facilityHi int
	cardLo, cardHi         int
}

var formats = map[int]format{
	35: {facilityLo: 2, facilityHi: 14, cardLo: 14, cardHi: 34},
	26: {facilityLo: 1, facilityHi: 9, cardLo: 9, cardHi: 25},
}

// DecodeCard extracts the facility and card codes from a completed
// frame. Unsupported lengths return ErrUnsupportedBitCount together with
// a Card preserving the raw bits.
func DecodeCard(f Frame) (Card, error) {
	card := Card{BitCount: f.BitCount, Bits: f.Bits}

	layout, ok := formats[f.BitCount]
	if !ok || len(f.Bits) != f.BitCount {
		return card, fmt.Errorf("%w: %d", ErrUnsupportedBitCount, f.BitCount)
	}

	fc, err := strconv.ParseUint(f.Bits[layout.facilityLo:layout.facilityHi], 2, 32)
	if err != nil {
		return card, fmt.Errorf("parse facility code: %w", err)
	}
	cc, err := strconv.ParseUint(f.Bits[layout.cardLo:layout.cardHi], 2, 32)
	if err != nil {
		return card, fmt.Errorf("parse card code: %w", err)
	}

	card.FacilityCode = uint32(fc)
	card.CardCode = uint32(cc)
	return card, nil
}

// EncodeBits builds the bitstring for a facility/card pair in the given
// format, with parity positions left zero. It is the inverse of
// DecodeCard over the field ranges and exists mainly for commissioning
// tools and tests.
func EncodeBits(facility, card uint32, bitCount int) (string, error) {
	layout, ok := formats[bitCount]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedBitCount, bitCount)
	}

	fcWidth := layout.facilityHi - layout.facilityLo
	ccWidth := layout.cardHi - layout.cardLo
	if uint64(facility) >= 1<<fcWidth {
		return "", fmt.Errorf("facility code %d does not fit in %d bits", facility, fcWidth)
	}
	if uint64(card) >= 1<<ccWidth {
		return "", fmt.Errorf("card code %d does not fit in %d bits", card, ccWidth)
	}

	bits := make([]byte, bitCount)
	for i := range bits {
		bits[i] = '0'
	}
	writeField := func(lo int, width int, v uint32) {
		for i := 0; i < width; i++ {
			if v&(1<<(width-1-i)) != 0 {
				bits[lo+i] = '1'
			}
		}
	}
	writeField(layout.facilityLo, fcWidth, facility)
	writeField(layout.cardLo, ccWidth, card)

	return string(bits), nil
}
