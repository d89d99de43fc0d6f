package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/service"
	"github.com/jmsoler/facegate/internal/facegate/store"
	"github.com/jmsoler/facegate/internal/facegate/store/memory"
	"github.com/jmsoler/facegate/internal/facegate/types"
)

// fakeCamera implements both FrameSource and Recognizer: each NextFrame
// call yields a synthetic frame, and Detect scripts the detections for
// the n-th frame (0-based).
type fakeCamera struct {
	mu       sync.Mutex
	frames   int
	script   func(n int) []types.Detection
	frameErr error
	delay    time.Duration // per-frame pacing
	gate     chan struct{} // when set, NextFrame blocks until closed
	started  chan struct{} // when set, closed on the first NextFrame call

	startOnce sync.Once
}

func (f *fakeCamera) NextFrame(ctx context.Context) (types.Frame, error) {
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return types.Frame{}, ctx.Err()
		}
	}
	if f.frameErr != nil {
		return types.Frame{}, f.frameErr
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return types.Frame{At: time.Now(), Data: []byte("jpeg")}, nil
}

func (f *fakeCamera) Detect(_ context.Context, _ types.Frame) ([]types.Detection, error) {
	f.mu.Lock()
	n := f.frames
	f.frames++
	f.mu.Unlock()
	return f.script(n), nil
}

// panicCamera fails the test if the controller touches the camera.
type panicCamera struct{ t *testing.T }

func (p *panicCamera) NextFrame(context.Context) (types.Frame, error) {
	p.t.Fatal("frame source used for a session that must not start the camera")
	return types.Frame{}, nil
}

func (p *panicCamera) Detect(context.Context, types.Frame) ([]types.Detection, error) {
	p.t.Fatal("recognizer used for a session that must not start the camera")
	return nil, nil
}

type controllerFixture struct {
	controller  *service.Controller
	credentials *memory.CredentialStore
	audit       *memory.AuditStore
	captures    *fakeCaptures
}

func newTestController(
	t *testing.T,
	camera interface {
		types.FrameSource
		types.Recognizer
	},
	cfg service.SessionConfig,
	voterCfg service.VoterConfig,
) *controllerFixture {
	t.Helper()

	credentials := memory.NewCredentialStore(map[string]types.SubjectID{
		"1234": "S1",
		"5678": "S2",
	})
	audit := memory.NewAuditStore()
	captures := &fakeCaptures{}

	controller := service.NewController(service.ControllerDeps{
		Credentials: credentials,
		Audit:       audit,
		Encodings:   encodings(enc("S1", vecS1), enc("S2", vecS2)),
		Frames:      camera,
		Recognizer:  camera,
		Captures:    captures,
		Notifier:    &service.LogNotifier{Logger: testLogger()},
		Logger:      testLogger(),
	}, cfg, voterCfg)

	return &controllerFixture{
		controller:  controller,
		credentials: credentials,
		audit:       audit,
		captures:    captures,
	}
}

func credential(cardCode string) types.Credential {
	return types.Credential{RawBits: "01" + cardCode, FacilityCode: "1", CardCode: cardCode}
}

func requireOutcome(t *testing.T, d types.Decision, want types.Outcome) {
	t.Helper()
	if d.Outcome != want {
		t.Fatalf("expected outcome %s, got %s", want, d.Outcome)
	}
}

// ── Credential validation ───────────────────────────────────────────────────

func TestController_UnknownCredentialDeniedWithoutCamera(t *testing.T) {
	fx := newTestController(t, &panicCamera{t: t},
		service.SessionConfig{MaxElapsed: time.Second}, service.VoterConfig{})

	d, err := fx.controller.HandleCredential(context.Background(), credential("9999"))
	if err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeDeniedUnknownCredential)
	if d.Granted {
		t.Error("expected granted=false")
	}

	records := fx.audit.Records()
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(records))
	}
	if records[0].CredentialKnown {
		t.Error("expected credential_known=false")
	}
	if records[0].FaceRecognized {
		t.Error("expected face_recognized=false")
	}
}

func TestController_EmptyCredentialIsError(t *testing.T) {
	fx := newTestController(t, &panicCamera{t: t},
		service.SessionConfig{MaxElapsed: time.Second}, service.VoterConfig{})

	if _, err := fx.controller.HandleCredential(context.Background(), types.Credential{}); err == nil {
		t.Error("expected error for empty credential")
	}
	if len(fx.audit.Records()) != 0 {
		t.Error("malformed delivery must not produce an audit record")
	}
}

// ── End-to-end scenarios ─────────────────────────────────────────────────────

func TestController_GrantedAfterThresholdMatches(t *testing.T) {
	camera := &fakeCamera{
		script: func(int) []types.Detection { return []types.Detection{detection(vecS1)} },
	}
	fx := newTestController(t, camera,
		service.SessionConfig{MaxElapsed: 5 * time.Second},
		service.VoterConfig{Threshold: 15})

	before := time.Now()
	d, err := fx.controller.HandleCredential(context.Background(), credential("1234"))
	if err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeGranted)
	if d.Subject != "S1" {
		t.Errorf("expected subject S1, got %q", d.Subject)
	}

	// 15 matching frames is exactly the threshold.
	if camera.frames != 15 {
		t.Errorf("expected 15 frames observed, got %d", camera.frames)
	}

	records := fx.audit.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	rec := records[0]
	if !rec.CredentialKnown || !rec.FaceRecognized || rec.Outcome != types.OutcomeGranted {
		t.Errorf("unexpected audit record: %+v", rec)
	}

	last := fx.credentials.LastAccess("1234")
	if last == nil || last.Before(before) {
		t.Errorf("expected last-access timestamp updated, got %v", last)
	}
}

func TestController_IdentityMismatchDenied(t *testing.T) {
	// The camera sees S2 while card 1234 is bound to S1.
	camera := &fakeCamera{
		script: func(int) []types.Detection { return []types.Detection{detection(vecS2)} },
	}
	fx := newTestController(t, camera,
		service.SessionConfig{MaxElapsed: 5 * time.Second},
		service.VoterConfig{Threshold: 3})

	d, err := fx.controller.HandleCredential(context.Background(), credential("1234"))
	if err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeDeniedIdentityMismatch)

	records := fx.audit.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if !records[0].FaceRecognized {
		t.Error("expected face_recognized=true for a mismatch denial")
	}
	if fx.credentials.LastAccess("1234") != nil {
		t.Error("mismatch must not update last-access")
	}
}

func TestController_UnknownFacesUntilDeadline(t *testing.T) {
	camera := &fakeCamera{
		script: func(int) []types.Detection { return []types.Detection{detection(vecUnknown)} },
		delay:  10 * time.Millisecond,
	}
	fx := newTestController(t, camera,
		service.SessionConfig{MaxElapsed: 300 * time.Millisecond, TerminalOnSaturation: false},
		service.VoterConfig{Threshold: 5, UnknownCaptureMax: 2})

	d, err := fx.controller.HandleCredential(context.Background(), credential("1234"))
	if err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeDeniedNoRecognition)

	if n := fx.captures.count(); n != 2 {
		t.Errorf("expected exactly 2 captured images, got %d", n)
	}

	records := fx.audit.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].FaceRecognized {
		t.Error("expected face_recognized=false")
	}
}

func TestController_SaturationTerminalClosesEarly(t *testing.T) {
	camera := &fakeCamera{
		script: func(int) []types.Detection { return []types.Detection{detection(vecUnknown)} },
	}
	fx := newTestController(t, camera,
		service.SessionConfig{MaxElapsed: 10 * time.Second, TerminalOnSaturation: true},
		service.VoterConfig{Threshold: 5, UnknownCaptureMax: 2})

	start := time.Now()
	d, err := fx.controller.HandleCredential(context.Background(), credential("1234"))
	if err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeDeniedNoRecognition)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("saturation should close the session well before the deadline, took %v", elapsed)
	}
	if n := fx.captures.count(); n != 2 {
		t.Errorf("expected 2 captures before saturation, got %d", n)
	}
}

func TestController_FrameSourceFailureClosesSession(t *testing.T) {
	camera := &fakeCamera{frameErr: context.DeadlineExceeded}
	fx := newTestController(t, camera,
		service.SessionConfig{MaxElapsed: 10 * time.Second}, service.VoterConfig{})

	start := time.Now()
	d, err := fx.controller.HandleCredential(context.Background(), credential("1234"))
	if err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeDeniedNoRecognition)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("dead frame source must close the session, not hang it (took %v)", elapsed)
	}
}

// ── Session exclusivity ──────────────────────────────────────────────────────

func TestController_SecondCredentialRejectedBusy(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	camera := &fakeCamera{
		script:  func(int) []types.Detection { return []types.Detection{detection(vecS1)} },
		gate:    gate,
		started: started,
	}
	fx := newTestController(t, camera,
		service.SessionConfig{MaxElapsed: 10 * time.Second},
		service.VoterConfig{Threshold: 1})

	firstDone := make(chan types.Decision, 1)
	go func() {
		d, err := fx.controller.HandleCredential(context.Background(), credential("1234"))
		if err != nil {
			t.Errorf("first HandleCredential: %v", err)
		}
		firstDone <- d
	}()

	// Wait until the first session holds the active flag: it closes
	// started on its first frame read, then blocks on the gate.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first session never started its frame loop")
	}

	d, err := fx.controller.HandleCredential(context.Background(), credential("5678"))
	if err != nil {
		t.Fatalf("second HandleCredential: %v", err)
	}
	requireOutcome(t, d, types.OutcomeDeniedBusy)

	// Release the first session and let it finish with a grant: the busy
	// rejection must not have disturbed its state.
	close(gate)
	select {
	case d := <-firstDone:
		requireOutcome(t, d, types.OutcomeGranted)
	case <-time.After(5 * time.Second):
		t.Fatal("first session never completed")
	}

	var busy, granted int
	for _, rec := range fx.audit.Records() {
		switch rec.Outcome {
		case types.OutcomeDeniedBusy:
			busy++
		case types.OutcomeGranted:
			granted++
		}
	}
	if busy != 1 {
		t.Errorf("expected exactly one busy audit record, got %d", busy)
	}
	if granted != 1 {
		t.Errorf("expected exactly one granted audit record, got %d", granted)
	}
}

// ── Audit/notify exactly once ────────────────────────────────────────────────

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) SessionClosed(context.Context, store.SessionRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func TestController_NotifiesExactlyOncePerSession(t *testing.T) {
	camera := &fakeCamera{
		script: func(int) []types.Detection { return []types.Detection{detection(vecS1)} },
	}
	notifier := &countingNotifier{}

	controller := service.NewController(service.ControllerDeps{
		Credentials: memory.NewCredentialStore(map[string]types.SubjectID{"1234": "S1"}),
		Audit:       memory.NewAuditStore(),
		Encodings:   encodings(enc("S1", vecS1)),
		Frames:      camera,
		Recognizer:  camera,
		Captures:    &fakeCaptures{},
		Notifier:    notifier,
		Logger:      testLogger(),
	}, service.SessionConfig{MaxElapsed: 5 * time.Second}, service.VoterConfig{Threshold: 1})

	if _, err := controller.HandleCredential(context.Background(), credential("1234")); err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}
	if _, err := controller.HandleCredential(context.Background(), credential("9999")); err != nil {
		t.Fatalf("HandleCredential: %v", err)
	}

	if notifier.calls != 2 {
		t.Errorf("expected exactly one notification per session (2 total), got %d", notifier.calls)
	}
}
