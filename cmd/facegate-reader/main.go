package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"periph.io/x/host/v3"

	"github.com/jmsoler/facegate/internal/config"
	"github.com/jmsoler/facegate/internal/transport"
	"github.com/jmsoler/facegate/internal/wiegand"
)

func main() {
	logger := log.New(os.Stdout, "facegate-reader ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	if _, err := host.Init(); err != nil {
		logger.Fatalf("gpio host init: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := transport.NewClient(transport.ClientConfig{BaseURL: cfg.ServerURL}, logger)

	// Decoded frames are handed off to a delivery goroutine so a slow or
	// unreachable controller never stalls the decoder.
	frames := make(chan wiegand.Frame, 16)
	dec := wiegand.NewDecoder(wiegand.Config{BitTimeout: cfg.BitTimeout()}, func(f wiegand.Frame) {
		select {
		case frames <- f:
		default:
			logger.Printf("dropping frame (%d bits): delivery backlog full", f.BitCount)
		}
	})
	defer dec.Close()

	reader, err := wiegand.NewGPIOReader(cfg.GPIOLine0, cfg.GPIOLine1, dec, logger)
	if err != nil {
		logger.Fatalf("gpio reader: %v", err)
	}
	reader.Start(ctx)
	defer reader.Stop()

	logger.Printf("delivering credentials to %s", cfg.ServerURL)

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			deliver(ctx, logger, client, frame)
		}
	}
}

// deliver decodes one Wiegand frame and posts it to the controller.
// Undecodable frames still go out, keyed on their raw bits; delivery
// failures are logged and the frame is dropped, never retried past the
// client's own retry budget.
func deliver(ctx context.Context, logger *log.Logger, client *transport.Client, frame wiegand.Frame) {
	var fc, cc string
	card, err := wiegand.DecodeCard(frame)
	if err != nil {
		logger.Printf("card read: %d bits, value=%s (no FC/CC: %v)",
			frame.BitCount, frame.Value.String(), err)
	} else {
		fc = strconv.FormatUint(uint64(card.FacilityCode), 10)
		cc = strconv.FormatUint(uint64(card.CardCode), 10)
		logger.Printf("card read: %d bits, value=%s, FC=%s, CC=%s",
			frame.BitCount, frame.Value.String(), fc, cc)
	}

	decision, err := client.Submit(ctx, transport.NewMessage(frame.Bits, fc, cc))
	if err != nil {
		logger.Printf("credential dropped: %v", err)
		return
	}
	logger.Printf("decision: session=%s outcome=%s granted=%t",
		decision.SessionID, decision.Outcome, decision.Granted)
}
