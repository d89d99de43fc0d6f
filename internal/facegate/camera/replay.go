// Package camera provides frame sources for the session controller. The
// Replay source serves pre-recorded images from disk at a fixed rate,
// which stands in for live hardware during development and testing.
package camera

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// DefaultFPS is the frame rate used when ReplayConfig.FPS is zero.
const DefaultFPS = 10.0

// ReplayConfig configures a Replay source.
type ReplayConfig struct {
	// Dir is the directory holding the recorded frames.
	Dir string
	// Pattern is the glob matched against file names in Dir.
	// Defaults to "*.jpg".
	Pattern string
	// FPS is the delivery rate. Defaults to DefaultFPS.
	FPS float64
	// Loop restarts from the first frame after the last. When false
	// the source reports an error once the recording is exhausted.
	Loop bool
}

// Replay reads image files from a directory in sorted name order and
// hands them out one per NextFrame call, paced to the configured rate.
type Replay struct {
	frames []string
	delay  time.Duration
	loop   bool
	logger *log.Logger

	idx  int
	next time.Time
}

// NewReplay scans cfg.Dir and prepares a replay over the matching files.
// It fails when the directory has no matching frames.
func NewReplay(cfg ReplayConfig, logger *log.Logger) (*Replay, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "*.jpg"
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("scan replay dir: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no frames in %s matching %s", cfg.Dir, pattern)
	}
	sort.Strings(matches)

	logger.Printf("replay source ready: %d frames from %s at %.1f fps", len(matches), cfg.Dir, fps)

	return &Replay{
		frames: matches,
		delay:  time.Duration(float64(time.Second) / fps),
		loop:   cfg.Loop,
		logger: logger,
	}, nil
}

// NextFrame returns the next recorded frame, sleeping as needed to hold
// the configured rate. Unreadable files are skipped. When the recording
// is exhausted and looping is off, it returns an error so the session
// closes instead of hanging.
func (r *Replay) NextFrame(ctx context.Context) (types.Frame, error) {
	for {
		if r.idx >= len(r.frames) {
			if !r.loop {
				return types.Frame{}, fmt.Errorf("replay exhausted after %d frames", len(r.frames))
			}
			r.idx = 0
		}

		if wait := time.Until(r.next); wait > 0 {
			select {
			case <-ctx.Done():
				return types.Frame{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		r.next = time.Now().Add(r.delay)

		path := r.frames[r.idx]
		r.idx++

		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Printf("replay: skipping unreadable frame %s: %v", path, err)
			continue
		}

		return types.Frame{At: time.Now(), Data: data}, nil
	}
}
