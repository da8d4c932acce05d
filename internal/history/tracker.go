// Package history keeps the most recent action runs in memory so the HTTP
// API can show what was triggered and whether it worked.
package history

import (
	"sync"
	"time"

	"scuffcommander/internal/clock"
)

// DefaultCapacity is the number of runs kept when NewTracker gets zero.
const DefaultCapacity = 100

// Run represents one evaluation of a stored action
type Run struct {
	Timestamp  time.Time `json:"timestamp"`
	ActionID   string    `json:"action_id"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the run succeeded.
func (r Run) OK() bool {
	return r.Error == ""
}

// Tracker records runs in a fixed-size ring and remembers the last run of
// every action id.
type Tracker struct {
	mu    sync.RWMutex
	clock clock.Clock
	runs  []Run
	next  int
	full  bool
	last  map[string]Run
}

// NewTracker creates a tracker keeping capacity runs. A nil clock uses the
// real clock.
func NewTracker(capacity int, c clock.Clock) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if c == nil {
		c = clock.NewRealClock()
	}
	return &Tracker{
		clock: c,
		runs:  make([]Run, capacity),
		last:  make(map[string]Run),
	}
}

// Evaluated implements action.Observer. The run's timestamp is its start.
func (t *Tracker) Evaluated(id string, took time.Duration, err error) {
	run := Run{
		Timestamp:  t.clock.Now().Add(-took),
		ActionID:   id,
		DurationMs: took.Milliseconds(),
	}
	if err != nil {
		run.Error = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[t.next] = run
	t.next = (t.next + 1) % len(t.runs)
	if t.next == 0 {
		t.full = true
	}
	t.last[id] = run
}

// Recent returns the recorded runs, newest first.
func (t *Tracker) Recent() []Run {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.next
	if t.full {
		n = len(t.runs)
	}
	out := make([]Run, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, t.runs[(t.next-i+len(t.runs))%len(t.runs)])
	}
	return out
}

// Last returns the most recent run of id.
func (t *Tracker) Last(id string) (Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.last[id]
	return run, ok
}

// Forget drops the last-run entry of id, e.g. after the action is deleted.
// Runs already in the ring are kept.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, id)
}
