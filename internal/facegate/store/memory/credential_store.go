package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/store"
	"github.com/jmsoler/facegate/internal/facegate/types"
)

// CredentialStore is an in-memory credential directory for tests and dev
// environments.
type CredentialStore struct {
	mu      sync.RWMutex
	records map[string]store.CredentialRecord
}

// NewCredentialStore seeds the directory with card-key → subject
// bindings. All seeded credentials start enabled.
func NewCredentialStore(bindings map[string]types.SubjectID) *CredentialStore {
	records := make(map[string]store.CredentialRecord, len(bindings))
	for key, subject := range bindings {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		records[key] = store.CredentialRecord{
			CardKey: key,
			Subject: subject,
			Enabled: true,
		}
	}
	return &CredentialStore{records: records}
}

func (s *CredentialStore) IsGranted(_ context.Context, cardKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[cardKey]
	return ok && rec.Enabled, nil
}

func (s *CredentialStore) SubjectFor(_ context.Context, cardKey string) (types.SubjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[cardKey].Subject, nil
}

func (s *CredentialStore) RecordAccess(_ context.Context, cardKey string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[cardKey]; ok {
		rec.LastAccess = &t
		s.records[cardKey] = rec
	}
	return nil
}

// LastAccess returns the recorded last-access time for a card key.
// Test-only helper.
func (s *CredentialStore) LastAccess(cardKey string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[cardKey].LastAccess
}
