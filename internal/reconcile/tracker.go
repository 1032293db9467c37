package reconcile

import (
	"sync"
	"time"
)

// State is a reconciliation run's position in its lifecycle.
type State string

const (
	StateIdle              State = "idle"
	StateAssembling        State = "assembling"
	StatePartiallyComplete State = "partially_complete"
	StateRetrying          State = "retrying"
	StateComplete          State = "complete"
	StateIncomplete        State = "incomplete"
	StateCancelled         State = "cancelled"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transitions can follow.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateIncomplete, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Snapshot is a point-in-time view of a run for rendering progress.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Season    int       `json:"season"`
	State     State     `json:"state"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Sweeps    int       `json:"sweeps"`
	Missing   []int     `json:"missing,omitempty"`
	Err       string    `json:"error,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker holds the latest Snapshot of a run. It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	listeners []func(Snapshot)
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{State: StateIdle}}
}

// Snapshot returns a copy of the current snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snap
	s.Missing = append([]int(nil), t.snap.Missing...)
	return s
}

// OnChange registers fn to receive every update. fn runs on the updating
// goroutine.
func (t *Tracker) OnChange(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) update(fn func(*Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	t.snap.UpdatedAt = time.Now()
	s := t.snap
	s.Missing = append([]int(nil), t.snap.Missing...)
	listeners := append([]func(Snapshot){}, t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}

// Settle records a season that was served without a run, such as from
// the cache.
func (t *Tracker) Settle(season, rounds int) {
	t.update(func(s *Snapshot) {
		*s = Snapshot{Season: season, State: StateComplete, Done: rounds, Total: rounds}
	})
}
