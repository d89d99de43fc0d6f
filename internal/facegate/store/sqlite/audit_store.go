package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/jmsoler/facegate/internal/db"
	"github.com/jmsoler/facegate/internal/facegate/store"
)

type AuditStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditStore(db *sql.DB, writer *dbpkg.Worker) *AuditStore {
	return &AuditStore{db: db, writer: writer}
}

func (s *AuditStore) RecordSession(ctx context.Context, rec store.SessionRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	atMs := rec.At.UTC().UnixMilli()

	var known, recognized int
	if rec.CredentialKnown {
		known = 1
	}
	if rec.FaceRecognized {
		recognized = 1
	}

	var subject any
	if rec.Subject != "" {
		subject = string(rec.Subject)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_audit(
  session_id, at_ms, card_key, credential_known,
  face_recognized, subject, outcome, elapsed_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.SessionID, atMs, rec.CardKey, known,
			recognized, subject, string(rec.Outcome), rec.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("RecordSession insert: %w", err)
		}
		return nil
	})
}
