package wiegand

import (
	"math/big"
	"strings"
	"time"
)

const (
	maskLine0 = 1 << iota
	maskLine1
	maskBoth = maskLine0 | maskLine1
)

type eventKind int

const (
	eventEdge eventKind = iota
	eventExpiry
)

// event is either a falling edge or a watchdog expiry. Both are consumed
// by the single decoder goroutine, so edge handling and timer handling
// can never interleave destructively.
type event struct {
	kind eventKind
	line Line
	at   time.Time
}

// Config holds decoder tunables.
type Config struct {
	// BitTimeout is the per-line silence interval that, once reached on
	// both lines, completes a code. Defaults to DefaultBitTimeout.
	BitTimeout time.Duration
}

// Decoder accumulates bits from edge events until both line watchdogs
// expire, then emits the completed Frame through its callback.
//
// All state is owned by one goroutine fed from a single event channel;
// Edge is safe to call from any goroutine (including interrupt-style
// callbacks).
type Decoder struct {
	cfg    Config
	emit   func(Frame)
	events chan event
	quit   chan struct{}
	done   chan struct{}
	timer  *EdgeTimer

	// Everything below is touched only by the run goroutine.
	inCode      bool
	bitCount    int
	bits        strings.Builder
	value       *big.Int
	timeoutMask uint8
}

// NewDecoder starts a decoder that calls emit once per completed frame.
// emit runs on the decoder goroutine and must not block for long.
func NewDecoder(cfg Config, emit func(Frame)) *Decoder {
	if cfg.BitTimeout <= 0 {
		cfg.BitTimeout = DefaultBitTimeout
	}

	d := &Decoder{
		cfg:    cfg,
		emit:   emit,
		events: make(chan event, 256),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		value:  new(big.Int),
	}
	d.timer = NewEdgeTimer(func(line Line, _ uint64) {
		d.post(event{kind: eventExpiry, line: line})
	})

	go d.run()
	return d
}

// Edge reports a falling edge on a line. Call it from the hardware
// callback; it never blocks the caller beyond a channel send.
func (d *Decoder) Edge(line Line, at time.Time) {
	d.post(event{kind: eventEdge, line: line, at: at})
}

// Close stops the decoder. Any code in progress is abandoned without
// emitting a frame.
func (d *Decoder) Close() {
	close(d.quit)
	<-d.done
}

func (d *Decoder) post(ev event) {
	select {
	case d.events <- ev:
	case <-d.quit:
	}
}

func (d *Decoder) run() {
	defer close(d.done)

	for {
		select {
		case <-d.quit:
			d.timer.Disarm(Line0)
			d.timer.Disarm(Line1)
			return
		case ev := <-d.events:
			switch ev.kind {
			case eventEdge:
				d.handleEdge(ev.line)
			case eventExpiry:
				d.handleExpiry(ev.line)
			}
		}
	}
}

func (d *Decoder) handleEdge(line Line) {
	if !d.inCode {
		d.inCode = true
		d.bitCount = 0
		d.bits.Reset()
		d.value.SetInt64(0)
	}

	d.bitCount++
	d.value.Lsh(d.value, 1)
	if line == Line1 {
		d.value.SetBit(d.value, 0, 1)
		d.bits.WriteByte('1')
	} else {
		d.bits.WriteByte('0')
	}

	// An edge on either line is evidence the code is still live: clear
	// any partial timeout and restart both watchdogs.
	d.timeoutMask = 0
	d.timer.Arm(Line0, d.cfg.BitTimeout)
	d.timer.Arm(Line1, d.cfg.BitTimeout)
}

func (d *Decoder) handleExpiry(line Line) {
	if !d.inCode {
		return
	}

	if line == Line0 {
		d.timeoutMask |= maskLine0
	} else {
		d.timeoutMask |= maskLine1
	}

	if d.timeoutMask != maskBoth {
		return
	}

	// Both lines have independently gone silent for the full timeout:
	// the code is complete.
	d.timer.Disarm(Line0)
	d.timer.Disarm(Line1)
	d.inCode = false
	d.timeoutMask = 0

	d.emit(Frame{
		BitCount: d.bitCount,
		Value:    new(big.Int).Set(d.value),
		Bits:     d.bits.String(),
	})
}
