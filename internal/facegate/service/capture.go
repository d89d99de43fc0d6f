package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// CaptureStore persists frames of unrecognized subjects.
type CaptureStore interface {
	// Save writes one frame under the incident started at incidentAt.
	// index is 1-based within the incident. Returns the written path.
	Save(incidentAt time.Time, index int, frame types.Frame) (string, error)
}

// DirCaptureStore writes captures under
// <root>/<YYYY-MM-DD>/<HHMMSS.ffffff>/<n>.jpg. All frames of one
// incident share the directory named after the first unknown detection.
type DirCaptureStore struct {
	root   string
	logger *log.Logger
}

func NewDirCaptureStore(root string, logger *log.Logger) *DirCaptureStore {
	return &DirCaptureStore{root: root, logger: logger}
}

func (s *DirCaptureStore) Save(incidentAt time.Time, index int, frame types.Frame) (string, error) {
	dir := filepath.Join(s.root,
		incidentAt.Format("2006-01-02"),
		incidentAt.Format("150405.000000"),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create incident dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.jpg", index))
	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}

	s.logger.Printf("unknown subject capture saved: %s", path)
	return path, nil
}
