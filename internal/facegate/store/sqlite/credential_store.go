package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/jmsoler/facegate/internal/db"
	"github.com/jmsoler/facegate/internal/facegate/types"
)

type CredentialStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCredentialStore(db *sql.DB, writer *dbpkg.Worker) *CredentialStore {
	return &CredentialStore{db: db, writer: writer}
}

// IsGranted: a card key is granted when its row exists, is enabled, and
// has not been revoked. Commissioning is an admin action (or the dev
// seeder); swiping an unknown card never creates a row.
func (s *CredentialStore) IsGranted(ctx context.Context, cardKey string) (bool, error) {
	cardKey = strings.TrimSpace(cardKey)
	if cardKey == "" {
		return false, nil
	}

	var enabled int
	var revoked sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
SELECT enabled, revoked_at_ms
FROM credentials
WHERE card_key = ?;
`, cardKey).Scan(&enabled, &revoked)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsGranted query: %w", err)
	}

	return enabled == 1 && !revoked.Valid, nil
}

func (s *CredentialStore) SubjectFor(ctx context.Context, cardKey string) (types.SubjectID, error) {
	cardKey = strings.TrimSpace(cardKey)
	if cardKey == "" {
		return "", nil
	}

	var subject string
	err := s.db.QueryRowContext(ctx, `
SELECT subject FROM credentials WHERE card_key = ?;
`, cardKey).Scan(&subject)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("SubjectFor query: %w", err)
	}

	return types.SubjectID(subject), nil
}

func (s *CredentialStore) RecordAccess(ctx context.Context, cardKey string, t time.Time) error {
	cardKey = strings.TrimSpace(cardKey)
	if cardKey == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE credentials
SET last_access_ms = ?,
    updated_at_ms  = ?
WHERE card_key = ?;
`, ms, ms, cardKey); err != nil {
			return fmt.Errorf("RecordAccess update: %w", err)
		}
		return nil
	})
}

// LastAccess returns the recorded last-access time, or nil if none.
func (s *CredentialStore) LastAccess(ctx context.Context, cardKey string) (*time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT last_access_ms FROM credentials WHERE card_key = ?;
`, cardKey).Scan(&ms)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LastAccess query: %w", err)
	}
	if !ms.Valid {
		return nil, nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t, nil
}
