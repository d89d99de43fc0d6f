package store

import (
	"context"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// SessionRecord captures one completed session for the audit log: which
// card was swiped, whether the directory knew it, whether a face crossed
// the vote threshold, and the final outcome. Exactly one record is
// written per terminal outcome, busy rejections included.
type SessionRecord struct {
	SessionID       string
	At              time.Time
	CardKey         string
	CredentialKnown bool
	FaceRecognized  bool
	Subject         types.SubjectID // recognized subject, "" if none
	Outcome         types.Outcome
	Elapsed         time.Duration
}

// AuditStore persists session outcomes as an append-only log.
type AuditStore interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
}
