package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmsoler/facegate/internal/config"
	"github.com/jmsoler/facegate/internal/db"
	"github.com/jmsoler/facegate/internal/facegate/camera"
	"github.com/jmsoler/facegate/internal/facegate/recognize"
	"github.com/jmsoler/facegate/internal/facegate/service"
	"github.com/jmsoler/facegate/internal/facegate/store/sqlite"
	"github.com/jmsoler/facegate/internal/facegate/types"
	"github.com/jmsoler/facegate/internal/httpapi"
	"github.com/jmsoler/facegate/internal/metrics"
)

func main() {
	logger := log.New(os.Stdout, "facegate-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB (open + migrate)
	database, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, database, db.SeedDevOptions{}); err != nil {
			logger.Fatalf("seed dev credentials: %v", err)
		}
		logger.Printf("dev credentials seeded")
	}

	writer := db.NewWorker(database)
	defer writer.Close()

	// Stores
	credentials := sqlite.NewCredentialStore(database, writer)
	audit := sqlite.NewAuditStore(database, writer)

	// Encodings snapshot + background refresh
	encodings := service.NewFileEncodings(cfg.EncodingsPath, logger)
	refresher := service.NewEncodingsRefresher(encodings, service.RefresherConfig{
		IntervalHours: cfg.EncodingsRefreshHours,
	}, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	// Camera side: live recognizer sidecar, replay frames when configured
	var frames types.FrameSource
	if cfg.ReplayDir != "" {
		replay, err := camera.NewReplay(camera.ReplayConfig{
			Dir:  cfg.ReplayDir,
			FPS:  cfg.ReplayFPS,
			Loop: cfg.ReplayLoop,
		}, logger)
		if err != nil {
			logger.Fatalf("replay source: %v", err)
		}
		frames = replay
	} else {
		logger.Fatalf("no frame source configured: set replay_dir")
	}
	recognizer := recognize.NewClient(recognize.ClientConfig{BaseURL: cfg.RecognizerURL}, logger)

	m := metrics.New()

	controller := service.NewController(service.ControllerDeps{
		Credentials: credentials,
		Audit:       audit,
		Encodings:   encodings,
		Frames:      frames,
		Recognizer:  recognizer,
		Captures:    service.NewDirCaptureStore(cfg.CaptureRoot, logger),
		Notifier:    &service.LogNotifier{Logger: logger},
		Logger:      logger,
		Metrics:     m,
	}, service.SessionConfig{
		MaxElapsed:           cfg.MaxElapsed(),
		TerminalOnSaturation: cfg.TerminalOnSaturation,
	}, service.VoterConfig{
		Tolerance:         cfg.Tolerance,
		Threshold:         cfg.VoteThreshold(),
		UnknownCaptureMax: cfg.CaptureBudget(),
	})

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Controller: controller,
		Metrics:    m.Handler(),
	})

	go func() {
		logger.Printf("listening on %s (mode=%s threshold=%d)",
			cfg.HTTPAddr, cfg.DetectionMode, cfg.VoteThreshold())
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
