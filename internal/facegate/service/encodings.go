package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// EncodingSet is an immutable snapshot of the known-face database. A
// session captures one snapshot at start and keeps it for its whole
// lifetime, so a reload mid-session never changes an in-flight vote.
type EncodingSet struct {
	entries []types.SubjectEncoding
}

// Entries returns the stored encodings in their stored order. Callers
// must not mutate the returned slice.
func (s *EncodingSet) Entries() []types.SubjectEncoding {
	if s == nil {
		return nil
	}
	return s.entries
}

// EncodingProvider hands out the current encodings snapshot.
type EncodingProvider interface {
	Snapshot() *EncodingSet
}

// FileEncodings serves snapshots of a JSON encodings file produced by
// the external batch encoder. Reload swaps the snapshot atomically.
type FileEncodings struct {
	path    string
	logger  *log.Logger
	current atomic.Pointer[EncodingSet]
}

func NewFileEncodings(path string, logger *log.Logger) *FileEncodings {
	return &FileEncodings{path: path, logger: logger}
}

// Reload reads the encodings file and installs it as the new snapshot.
// On error the previous snapshot stays in place.
func (e *FileEncodings) Reload(_ context.Context) error {
	raw, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("read encodings file: %w", err)
	}

	var entries []struct {
		Subject string    `json:"subject"`
		Vector  []float64 `json:"vector"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse encodings file: %w", err)
	}

	set := &EncodingSet{entries: make([]types.SubjectEncoding, 0, len(entries))}
	for _, en := range entries {
		set.entries = append(set.entries, types.SubjectEncoding{
			Subject: types.SubjectID(en.Subject),
			Vector:  en.Vector,
		})
	}

	e.current.Store(set)
	e.logger.Printf("encodings reloaded: %d entries from %s", len(set.entries), e.path)
	return nil
}

func (e *FileEncodings) Snapshot() *EncodingSet {
	if set := e.current.Load(); set != nil {
		return set
	}
	return &EncodingSet{}
}

// StaticEncodings is a fixed snapshot provider for tests and dev setups.
type StaticEncodings struct {
	set *EncodingSet
}

func NewStaticEncodings(entries []types.SubjectEncoding) *StaticEncodings {
	return &StaticEncodings{set: &EncodingSet{entries: entries}}
}

func (s *StaticEncodings) Snapshot() *EncodingSet { return s.set }

// EncodingsRefresher periodically reloads the encodings file so the
// controller picks up the batch encoder's output without a restart. It
// runs as a background goroutine and is safe to stop via its context or
// the Stop method.
type EncodingsRefresher struct {
	encodings *FileEncodings
	interval  time.Duration
	logger    *log.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// RefresherConfig holds the parameters for NewEncodingsRefresher.
type RefresherConfig struct {
	// IntervalHours is how often the encodings file is re-read.
	// 0 disables the refresher (the startup load still happens).
	IntervalHours int
}

// NewEncodingsRefresher creates a refresher but does not start it.
// Call Start to begin the background loop.
func NewEncodingsRefresher(e *FileEncodings, cfg RefresherConfig, logger *log.Logger) *EncodingsRefresher {
	return &EncodingsRefresher{
		encodings: e,
		interval:  time.Duration(cfg.IntervalHours) * time.Hour,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background reload loop. It runs an immediate reload
// on startup, then repeats on the configured interval. The loop exits
// when ctx is cancelled or Stop is called.
func (r *EncodingsRefresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Printf("encodings refresher disabled (interval=0)")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Printf("encodings refresher started (interval=%dh)", int(r.interval.Hours()))
}

// Stop signals the refresher to exit and waits for it to finish.
func (r *EncodingsRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *EncodingsRefresher) loop(ctx context.Context) {
	defer close(r.done)

	r.reload(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reload(ctx)
		}
	}
}

func (r *EncodingsRefresher) reload(ctx context.Context) {
	if err := r.encodings.Reload(ctx); err != nil {
		r.logger.Printf("encodings reload error: %v", err)
	}
}
