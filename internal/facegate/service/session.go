package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmsoler/facegate/internal/facegate/store"
	"github.com/jmsoler/facegate/internal/facegate/types"
	"github.com/jmsoler/facegate/internal/metrics"
)

// ErrEmptyCredential is returned when a delivered credential has no
// usable key at all.
var ErrEmptyCredential = errors.New("credential has no raw bits")

// DefaultMaxElapsed bounds the recognition window of one session.
const DefaultMaxElapsed = 15 * time.Second

// Notifier receives the terminal record of each session, e.g. to pulse
// the door strike or update a dashboard. Called exactly once per
// session, after the audit record is written.
type Notifier interface {
	SessionClosed(ctx context.Context, rec store.SessionRecord)
}

// LogNotifier writes one human-readable access line per session, in the
// shape of the door access log.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) SessionClosed(_ context.Context, rec store.SessionRecord) {
	switch rec.Outcome {
	case types.OutcomeGranted:
		n.Logger.Printf("access granted for card ID '%s' (subject %s)", rec.CardKey, rec.Subject)
	case types.OutcomeDeniedIdentityMismatch:
		n.Logger.Printf("access refused for card ID '%s' (face does not match card holder)", rec.CardKey)
	case types.OutcomeDeniedNoRecognition:
		n.Logger.Printf("access refused for card ID '%s' (no face detection)", rec.CardKey)
	case types.OutcomeDeniedBusy:
		n.Logger.Printf("access refused for card ID '%s' (reader busy)", rec.CardKey)
	default:
		n.Logger.Printf("access refused for card ID '%s' (card ID not accepted)", rec.CardKey)
	}
}

// SessionConfig holds controller tunables.
type SessionConfig struct {
	// MaxElapsed is the recognition deadline per session. Defaults to
	// DefaultMaxElapsed. The deadline is advisory: it is checked between
	// frame observations, never by aborting a frame read.
	MaxElapsed time.Duration

	// TerminalOnSaturation closes the session when the unknown-capture
	// budget is exhausted, treated as a timeout. The config loader
	// defaults this to true.
	TerminalOnSaturation bool
}

// ControllerDeps are the collaborators a Controller needs.
type ControllerDeps struct {
	Credentials store.CredentialStore
	Audit       store.AuditStore
	Encodings   EncodingProvider
	Frames      types.FrameSource
	Recognizer  types.Recognizer
	Captures    CaptureStore
	Notifier    Notifier
	Logger      *log.Logger
	Metrics     *metrics.Metrics
	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Controller runs one credential-to-decision session at a time. The
// single-flight invariant lives in one mutex-guarded flag: credential
// delivery and the frame loop both run under the session the flag
// admitted, so two credentials can never race the camera.
type Controller struct {
	deps     ControllerDeps
	cfg      SessionConfig
	voterCfg VoterConfig

	mu     sync.Mutex
	active bool
}

// NewController wires a session controller. voterCfg applies to every
// session's fresh Voter.
func NewController(deps ControllerDeps, cfg SessionConfig, voterCfg VoterConfig) *Controller {
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = DefaultMaxElapsed
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{deps: deps, cfg: cfg, voterCfg: voterCfg}
}

// HandleCredential runs one full session for a delivered credential and
// returns the terminal decision. It blocks for up to MaxElapsed while
// the camera votes. A credential arriving while another session is in
// flight is rejected immediately with a busy decision.
//
// Every terminal outcome writes exactly one audit record and invokes
// the notifier exactly once, whichever path produced it.
func (c *Controller) HandleCredential(ctx context.Context, cred types.Credential) (types.Decision, error) {
	if cred.RawBits == "" {
		return types.Decision{}, ErrEmptyCredential
	}

	sessionID := uuid.NewString()
	cardKey := cred.Key()
	start := c.deps.Now()

	if c.deps.Metrics != nil {
		c.deps.Metrics.CredentialReceived(cred.CardCode != "")
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		// Rejected synchronously; the in-flight session and its tally
		// are untouched.
		return c.close(ctx, store.SessionRecord{
			SessionID: sessionID,
			At:        start,
			CardKey:   cardKey,
			Outcome:   types.OutcomeDeniedBusy,
		}, start)
	}
	c.active = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}()

	known, err := c.deps.Credentials.IsGranted(ctx, cardKey)
	if err != nil {
		return types.Decision{}, fmt.Errorf("credential lookup: %w", err)
	}

	if !known {
		return c.close(ctx, store.SessionRecord{
			SessionID: sessionID,
			At:        start,
			CardKey:   cardKey,
			Outcome:   types.OutcomeDeniedUnknownCredential,
		}, start)
	}

	boundSubject, err := c.deps.Credentials.SubjectFor(ctx, cardKey)
	if err != nil {
		return types.Decision{}, fmt.Errorf("subject lookup: %w", err)
	}

	c.deps.Logger.Printf("session %s: card '%s' accepted, starting recognition (deadline %s)",
		sessionID, cardKey, c.cfg.MaxElapsed)

	recognized := c.runRecognition(ctx, sessionID)

	rec := store.SessionRecord{
		SessionID:       sessionID,
		At:              start,
		CardKey:         cardKey,
		CredentialKnown: true,
		FaceRecognized:  recognized != "",
		Subject:         recognized,
	}

	switch {
	case recognized == "":
		rec.Outcome = types.OutcomeDeniedNoRecognition
	case recognized == boundSubject:
		rec.Outcome = types.OutcomeGranted
		if err := c.deps.Credentials.RecordAccess(ctx, cardKey, c.deps.Now()); err != nil {
			c.deps.Logger.Printf("session %s: record access: %v", sessionID, err)
		}
	default:
		rec.Outcome = types.OutcomeDeniedIdentityMismatch
	}

	return c.close(ctx, rec, start)
}

// runRecognition feeds frames to a fresh voter until a subject crosses
// the threshold, the deadline passes, the frame source fails, or
// capture saturation ends the session. Returns the recognized subject,
// or "" if none.
func (c *Controller) runRecognition(ctx context.Context, sessionID string) types.SubjectID {
	voter := NewVoter(c.voterCfg, c.deps.Encodings.Snapshot(), c.deps.Captures, c.deps.Logger)
	deadline := c.deps.Now().Add(c.cfg.MaxElapsed)

	for c.deps.Now().Before(deadline) {
		frame, err := c.deps.Frames.NextFrame(ctx)
		if err != nil {
			// A dead frame source must close the session, not hang it.
			c.deps.Logger.Printf("session %s: frame source failed: %v", sessionID, err)
			return ""
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.FrameObserved()
		}

		detections, err := c.deps.Recognizer.Detect(ctx, frame)
		if err != nil {
			c.deps.Logger.Printf("session %s: recognizer error, skipping frame: %v", sessionID, err)
			continue
		}

		switch out := voter.Observe(frame, detections); out.Kind {
		case VoteGranted:
			c.deps.Logger.Printf("session %s: face recognized, threshold reached for %s",
				sessionID, out.Subject)
			return out.Subject
		case VoteCaptureUnknown:
			if c.deps.Metrics != nil {
				c.deps.Metrics.UnknownCaptured()
			}
		case VoteSaturated:
			if c.cfg.TerminalOnSaturation {
				c.deps.Logger.Printf("session %s: unknown-capture saturation, closing session", sessionID)
				return ""
			}
		}
	}

	c.deps.Logger.Printf("session %s: deadline elapsed, no subject reached threshold", sessionID)
	return ""
}

// close writes the audit record, notifies, and builds the decision.
// Audit failures are logged, not returned — the reader still gets its
// decision even if the log write fails.
func (c *Controller) close(ctx context.Context, rec store.SessionRecord, start time.Time) (types.Decision, error) {
	rec.Elapsed = c.deps.Now().Sub(start)

	if err := c.deps.Audit.RecordSession(ctx, rec); err != nil {
		c.deps.Logger.Printf("session %s: audit write failed: %v", rec.SessionID, err)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.SessionClosed(rec.Outcome, rec.Elapsed)
	}
	if c.deps.Notifier != nil {
		c.deps.Notifier.SessionClosed(ctx, rec)
	}

	return types.Decision{
		SessionID:  rec.SessionID,
		Outcome:    rec.Outcome,
		Granted:    rec.Outcome.Granted(),
		Subject:    rec.Subject,
		ServerTime: c.deps.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
