package wiegand

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// edgePollTimeout bounds each WaitForEdge call so the read loops can
// notice context cancellation.
const edgePollTimeout = 500 * time.Millisecond

// GPIOReader binds the two Wiegand data lines to GPIO pins and feeds
// falling edges into a Decoder. Callers must have initialized the periph
// host (host.Init) before constructing one.
type GPIOReader struct {
	pins   [2]gpio.PinIn
	dec    *Decoder
	logger *log.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGPIOReader configures pin0 (D0) and pin1 (D1) as pulled-up inputs
// with falling-edge detection. Pin names are periph names, e.g. "GPIO14".
func NewGPIOReader(pin0, pin1 string, dec *Decoder, logger *log.Logger) (*GPIOReader, error) {
	r := &GPIOReader{dec: dec, logger: logger}

	for i, name := range []string{pin0, pin1} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio pin %q not found", name)
		}
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("configure %s: %w", name, err)
		}
		r.pins[i] = p
	}

	return r, nil
}

// Start launches one edge-wait loop per line. Edges are timestamped here
// and handed to the decoder's event queue; the loops do no decoding of
// their own.
func (r *GPIOReader) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for i, p := range r.pins {
		line := Line(i)
		pin := p
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if pin.WaitForEdge(edgePollTimeout) {
					r.dec.Edge(line, time.Now())
				}
			}
		}()
	}

	r.logger.Printf("wiegand reader started on %s/%s", r.pins[0], r.pins[1])
}

// Stop terminates the edge loops and waits for them to exit.
func (r *GPIOReader) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
