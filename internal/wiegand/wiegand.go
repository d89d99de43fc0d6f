// Package wiegand reconstructs card reads from the two data lines of a
// Wiegand reader. The protocol has no clock and no framing: a falling
// edge on D0 is a 0 bit, a falling edge on D1 is a 1 bit, and the end of
// a code is inferred from both lines staying silent for the bit timeout.
package wiegand

import (
	"math/big"
	"time"
)

// Line identifies one of the two Wiegand data lines.
type Line int

const (
	// Line0 is the D0 (green) wire; an edge on it is a 0 bit.
	Line0 Line = iota
	// Line1 is the D1 (white) wire; an edge on it is a 1 bit.
	Line1
)

func (l Line) String() string {
	if l == Line0 {
		return "D0"
	}
	return "D1"
}

// DefaultBitTimeout is the silence interval that ends a code. Wiegand
// inter-bit gaps are ~1 ms, so 5 ms of silence on both lines is
// unambiguous end-of-transmission.
const DefaultBitTimeout = 5 * time.Millisecond

// Frame is one completed card read. Bits holds every received bit in
// arrival order; Value is the same sequence read as a big-endian binary
// integer. A Frame is immutable once emitted.
type Frame struct {
	BitCount int
	Value    *big.Int
	Bits     string
}
