package memory

import (
	"context"
	"sync"

	"github.com/jmsoler/facegate/internal/facegate/store"
)

// AuditStore is an in-memory append-only session log for tests and dev
// environments.
type AuditStore struct {
	mu      sync.Mutex
	records []store.SessionRecord
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) RecordSession(_ context.Context, rec store.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of all recorded sessions. Test-only helper.
func (s *AuditStore) Records() []store.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.SessionRecord, len(s.records))
	copy(out, s.records)
	return out
}
