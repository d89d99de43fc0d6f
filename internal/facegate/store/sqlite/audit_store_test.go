package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/store"
	"github.com/jmsoler/facegate/internal/facegate/store/sqlite"
	"github.com/jmsoler/facegate/internal/facegate/types"
)

func TestAuditStore_RecordSession(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAuditStore(conn, writer)
	ctx := context.Background()

	rec := store.SessionRecord{
		SessionID:       "s-1",
		At:              time.Date(2025, 6, 25, 10, 51, 22, 0, time.UTC),
		CardKey:         "1234",
		CredentialKnown: true,
		FaceRecognized:  true,
		Subject:         "Javier_Soler_Macias_A20432537",
		Outcome:         types.OutcomeGranted,
		Elapsed:         3 * time.Second,
	}
	if err := s.RecordSession(ctx, rec); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	var (
		cardKey, outcome, subject string
		known, recognized         int
		elapsedMs                 int64
	)
	err := conn.QueryRow(`
SELECT card_key, credential_known, face_recognized, subject, outcome, elapsed_ms
FROM session_audit WHERE session_id = 's-1';
`).Scan(&cardKey, &known, &recognized, &subject, &outcome, &elapsedMs)
	if err != nil {
		t.Fatalf("query audit row: %v", err)
	}

	if cardKey != "1234" || known != 1 || recognized != 1 {
		t.Errorf("unexpected row: card=%q known=%d recognized=%d", cardKey, known, recognized)
	}
	if outcome != string(types.OutcomeGranted) {
		t.Errorf("unexpected outcome %q", outcome)
	}
	if subject != "Javier_Soler_Macias_A20432537" {
		t.Errorf("unexpected subject %q", subject)
	}
	if elapsedMs != 3000 {
		t.Errorf("expected elapsed_ms=3000, got %d", elapsedMs)
	}
}

func TestAuditStore_NullSubjectForDenials(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAuditStore(conn, writer)

	rec := store.SessionRecord{
		SessionID: "s-2",
		At:        time.Now().UTC(),
		CardKey:   "9999",
		Outcome:   types.OutcomeDeniedUnknownCredential,
	}
	if err := s.RecordSession(context.Background(), rec); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	var subject any
	if err := conn.QueryRow(
		`SELECT subject FROM session_audit WHERE session_id = 's-2';`,
	).Scan(&subject); err != nil {
		t.Fatalf("query: %v", err)
	}
	if subject != nil {
		t.Errorf("expected NULL subject, got %v", subject)
	}
}

func TestAuditStore_AppendOnlyAccumulates(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	s := sqlite.NewAuditStore(conn, writer)
	ctx := context.Background()

	for i, outcome := range []types.Outcome{
		types.OutcomeDeniedBusy,
		types.OutcomeDeniedNoRecognition,
		types.OutcomeGranted,
	} {
		rec := store.SessionRecord{
			SessionID: string(rune('a' + i)),
			CardKey:   "1234",
			Outcome:   outcome,
		}
		if err := s.RecordSession(ctx, rec); err != nil {
			t.Fatalf("RecordSession %d: %v", i, err)
		}
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM session_audit;`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 audit rows, got %d", n)
	}
}
