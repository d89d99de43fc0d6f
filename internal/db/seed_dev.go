package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Credentials maps card keys to subject identifiers to pre-commission
	// in dev. Defaults to the two lab test cards when empty.
	Credentials map[string]string
}

func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	creds := opt.Credentials
	if len(creds) == 0 {
		creds = map[string]string{
			"1234": "Javier_Soler_Macias_A20432537",
			"5678": "John_Doe_A20000000",
		}
	}

	for key, subject := range creds {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO credentials(
  card_key, subject, enabled,
  created_at_ms, updated_at_ms
) VALUES (?, ?, 1, ?, ?)
ON CONFLICT(card_key) DO UPDATE SET
  subject = excluded.subject,
  enabled = 1,
  updated_at_ms = excluded.updated_at_ms;
`, key, subject, now, now); err != nil {
			return fmt.Errorf("seed credential %s: %w", key, err)
		}
	}

	return nil
}
