package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/reconcile"
)

// seasonRunner assembles a season under a tracker.
type seasonRunner func(ctx context.Context, season int, t *reconcile.Tracker) (reconcile.Result, error)

type job struct {
	ID      string
	Season  int
	tracker *reconcile.Tracker
	cancel  context.CancelFunc
	done    chan struct{}
}

// jobs tracks background season reconciliations started over HTTP. A job
// is forgotten keep after it finishes.
type jobs struct {
	mu   sync.Mutex
	byID map[string]*job
	run  seasonRunner
	base context.Context
	keep time.Duration
}

func newJobs(base context.Context, run seasonRunner, keep time.Duration) *jobs {
	return &jobs{byID: make(map[string]*job), run: run, base: base, keep: keep}
}

// Start launches a reconciliation for season and returns its id.
func (j *jobs) Start(season int) *job {
	ctx, cancel := context.WithCancel(j.base)
	jb := &job{
		ID:      uuid.NewString(),
		Season:  season,
		tracker: reconcile.NewTracker(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	j.mu.Lock()
	j.byID[jb.ID] = jb
	j.mu.Unlock()

	go func() {
		defer j.forget(jb)
		defer close(jb.done)
		defer cancel()
		res, err := j.run(ctx, season, jb.tracker)
		if err != nil {
			zap.L().Warn("season job ended early",
				zap.String("job", jb.ID),
				zap.Int("season", season),
				zap.String("state", string(res.State)),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("season job complete",
			zap.String("job", jb.ID),
			zap.Int("season", season),
			zap.Int("races", len(res.Races)),
		)
	}()
	return jb
}

func (j *jobs) forget(jb *job) {
	time.AfterFunc(j.keep, func() {
		j.mu.Lock()
		delete(j.byID, jb.ID)
		j.mu.Unlock()
	})
}

// Get returns the job with id.
func (j *jobs) Get(id string) (*job, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	jb, ok := j.byID[id]
	return jb, ok
}

// Cancel stops the job with id. It reports false for unknown ids.
func (j *jobs) Cancel(id string) bool {
	jb, ok := j.Get(id)
	if !ok {
		return false
	}
	jb.cancel()
	return true
}

// activity keeps the most recent cache writes.
type activity struct {
	mu     sync.Mutex
	events []cache.Event
	size   int
}

func newActivity(size int) *activity {
	return &activity{size: size}
}

// Record is a cache.Listener.
func (a *activity) Record(ev cache.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	if len(a.events) > a.size {
		a.events = a.events[len(a.events)-a.size:]
	}
}

// Recent returns the kept events, newest first.
func (a *activity) Recent() []cache.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]cache.Event, len(a.events))
	for i, ev := range a.events {
		out[len(a.events)-1-i] = ev
	}
	return out
}
