package store

import (
	"context"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// CredentialRecord is one entry in the credential directory: a card key
// bound to the subject whose face must be seen before the door opens.
type CredentialRecord struct {
	CardKey    string
	Subject    types.SubjectID
	Enabled    bool
	LastAccess *time.Time
}

// CredentialStore is the directory queried by the session controller.
type CredentialStore interface {
	// IsGranted reports whether the card key is commissioned and enabled.
	IsGranted(ctx context.Context, cardKey string) (bool, error)

	// SubjectFor returns the subject bound to the card key, or "" if the
	// key is not in the directory.
	SubjectFor(ctx context.Context, cardKey string) (types.SubjectID, error)

	// RecordAccess persists the last successful access timestamp for the
	// card key.
	RecordAccess(ctx context.Context, cardKey string, t time.Time) error
}
