package wiegand

import (
	"sync"
	"time"
)

// EdgeTimer is a pair of one-shot per-line watchdogs. Arm schedules an
// expiry callback unless Disarm or a later Arm for the same line happens
// first. The callback runs on a timer goroutine; callers are expected to
// forward it into their own serialization point (the decoder posts it
// into the same event queue that carries edges).
//
// A per-line generation counter makes re-arming race-free: a timer that
// fires after its line has been re-armed finds a newer generation and is
// dropped.
type EdgeTimer struct {
	mu     sync.Mutex
	gen    [2]uint64
	timers [2]*time.Timer
	expire func(line Line, gen uint64)
}

// NewEdgeTimer creates an EdgeTimer that reports expiries through expire.
func NewEdgeTimer(expire func(line Line, gen uint64)) *EdgeTimer {
	return &EdgeTimer{expire: expire}
}

// Arm schedules a one-shot expiry for line after timeout, replacing any
// prior arm for the same line.
func (t *EdgeTimer) Arm(line Line, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen[line]++
	g := t.gen[line]

	if t.timers[line] != nil {
		t.timers[line].Stop()
	}
	t.timers[line] = time.AfterFunc(timeout, func() {
		t.fire(line, g)
	})
}

// Disarm cancels any pending expiry for line.
func (t *EdgeTimer) Disarm(line Line) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen[line]++
	if t.timers[line] != nil {
		t.timers[line].Stop()
		t.timers[line] = nil
	}
}

func (t *EdgeTimer) fire(line Line, g uint64) {
	t.mu.Lock()
	current := t.gen[line] == g
	t.mu.Unlock()

	if current {
		t.expire(line, g)
	}
}
