package service

import (
	"log"
	"math"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// DefaultTolerance is the embedding distance at or under which a
// detection matches a stored encoding.
const DefaultTolerance = 0.55

// VoteKind classifies the result of observing one frame.
type VoteKind int

const (
	// VoteNoDecision: nothing conclusive; keep feeding frames.
	VoteNoDecision VoteKind = iota
	// VoteGranted: a subject's tally just reached the threshold.
	VoteGranted
	// VoteCaptureUnknown: an unrecognized subject was captured to disk.
	VoteCaptureUnknown
	// VoteSaturated: the unknown-capture budget is exhausted. Emitted
	// once; later unknown detections are dropped silently.
	VoteSaturated
)

// VoteOutcome is what Observe returns for one frame.
type VoteOutcome struct {
	Kind        VoteKind
	Subject     types.SubjectID // set for VoteGranted
	CapturePath string          // set for VoteCaptureUnknown
}

// VoterConfig holds per-session voting tunables. Zero values get the
// accurate-mode defaults.
type VoterConfig struct {
	// Tolerance is the max embedding distance for a match.
	Tolerance float64
	// Threshold is the tally a subject must reach to be granted.
	Threshold int
	// UnknownCaptureMax caps captures of unrecognized subjects.
	UnknownCaptureMax int
}

func (c VoterConfig) withDefaults() VoterConfig {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Threshold <= 0 {
		c.Threshold = 15
	}
	if c.UnknownCaptureMax <= 0 {
		c.UnknownCaptureMax = 15
	}
	return c
}

// Voter accumulates per-subject match votes across the frames of one
// session. It owns its tally and counters outright — a fresh Voter is
// created at session start and discarded at session end, so sessions
// never share state. Voter is not safe for concurrent use; the session
// controller is its single caller.
type Voter struct {
	cfg       VoterConfig
	encodings *EncodingSet
	captures  CaptureStore
	logger    *log.Logger

	tally         map[types.SubjectID]int
	unknownCount  int
	incidentAt    time.Time // first unknown detection of this session
	saturated     bool
	captureBroken bool
	granted       bool
}

// NewVoter builds a voter over one encodings snapshot. The snapshot is
// pinned for the voter's lifetime; directory reloads do not affect it.
func NewVoter(cfg VoterConfig, encodings *EncodingSet, captures CaptureStore, logger *log.Logger) *Voter {
	return &Voter{
		cfg:       cfg.withDefaults(),
		encodings: encodings,
		captures:  captures,
		logger:    logger,
		tally:     make(map[types.SubjectID]int),
	}
}

// Observe processes the detections of one frame. The caller must stop
// calling Observe for the session once VoteGranted is returned.
//
// Within one frame a grant takes precedence over capture outcomes, and
// the tally stops the moment a subject crosses the threshold — the first
// subject to cross wins, ties broken by detection order in the frame.
func (v *Voter) Observe(frame types.Frame, detections []types.Detection) VoteOutcome {
	var captured string
	var justSaturated bool

	for _, det := range detections {
		subject, ok := v.matchDetection(det)
		if ok {
			v.tally[subject]++
			if !v.granted && v.tally[subject] >= v.cfg.Threshold {
				v.granted = true
				return VoteOutcome{Kind: VoteGranted, Subject: subject}
			}
			continue
		}

		path, saturatedNow := v.handleUnknown(frame)
		if path != "" {
			captured = path
		}
		if saturatedNow {
			justSaturated = true
		}
	}

	if justSaturated {
		return VoteOutcome{Kind: VoteSaturated}
	}
	if captured != "" {
		return VoteOutcome{Kind: VoteCaptureUnknown, CapturePath: captured}
	}
	return VoteOutcome{}
}

// Tally returns a copy of the per-subject vote counts.
func (v *Voter) Tally() map[types.SubjectID]int {
	out := make(map[types.SubjectID]int, len(v.tally))
	for k, n := range v.tally {
		out[k] = n
	}
	return out
}

// UnknownCaptures returns how many frames of unrecognized subjects were
// persisted this session.
func (v *Voter) UnknownCaptures() int { return v.unknownCount }

// matchDetection resolves a detection against the stored encodings.
// Every stored entry within tolerance counts as one vote for its
// subject; the subject with the most matching entries wins. Ties go to
// whichever subject appears first in stored order (a policy choice —
// the stored order is the load order of the encodings file).
func (v *Voter) matchDetection(det types.Detection) (types.SubjectID, bool) {
	counts := make(map[types.SubjectID]int)
	var order []types.SubjectID

	for _, enc := range v.encodings.Entries() {
		if len(enc.Vector) != len(det.Vector) {
			continue
		}
		if distance(enc.Vector, det.Vector) <= v.cfg.Tolerance {
			if counts[enc.Subject] == 0 {
				order = append(order, enc.Subject)
			}
			counts[enc.Subject]++
		}
	}

	var best types.SubjectID
	bestCount := 0
	for _, subject := range order {
		if counts[subject] > bestCount {
			best = subject
			bestCount = counts[subject]
		}
	}
	return best, bestCount > 0
}

// handleUnknown throttles and persists captures of unrecognized
// subjects. Returns the written path (if a capture was taken) and
// whether the saturation warning fires on this detection.
func (v *Voter) handleUnknown(frame types.Frame) (string, bool) {
	if v.unknownCount >= v.cfg.UnknownCaptureMax || v.captureBroken {
		if !v.saturated {
			v.saturated = true
			v.logger.Printf("unknown-capture budget exhausted (%d); dropping further captures",
				v.unknownCount)
			return "", true
		}
		return "", false
	}

	if v.incidentAt.IsZero() {
		at := frame.At
		if at.IsZero() {
			at = time.Now()
		}
		v.incidentAt = at
	}

	v.unknownCount++
	path, err := v.captures.Save(v.incidentAt, v.unknownCount, frame)
	if err != nil {
		// Storage failure downgrades to saturation semantics: voting
		// continues, capturing stops.
		v.logger.Printf("unknown capture failed, disabling captures for session: %v", err)
		v.captureBroken = true
		v.unknownCount--
		if !v.saturated {
			v.saturated = true
			return "", true
		}
		return "", false
	}

	return path, false
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
