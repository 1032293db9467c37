// Package reconcile assembles a full season of race results and keeps
// retrying the rounds that came back empty until every round that has run
// is complete, the sweep budget runs out, or the caller goes away.
//
// A run moves Assembling → PartiallyComplete → Retrying → Complete. Only
// Complete calls the commit function, and it does so exactly once.
// Incomplete, Cancelled and Failed never commit.
package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/resilience"
)

// Source is the upstream a run reads from.
type Source interface {
	Schedule(ctx context.Context, season int) ([]model.Race, error)
	SeasonResultsPartial(ctx context.Context, season int) ([]model.Race, error)
	RoundResults(ctx context.Context, season, round int) (model.Race, error)
	RoundResultsPaged(ctx context.Context, season, round int) (model.Race, error)
}

// CommitFunc persists a complete season.
type CommitFunc func(ctx context.Context, season int, races []model.Race) error

// Config tunes a run.
type Config struct {
	// SweepInterval is the wait before each pass over the missing rounds.
	SweepInterval time.Duration
	// MaxSweeps bounds the number of passes. Zero means unbounded.
	MaxSweeps int
	// Deadline bounds the whole run. Zero means no deadline.
	Deadline time.Duration
	// Concurrency is the number of missing rounds fetched at once.
	Concurrency int

	// Sleep replaces the wall-clock sweep wait (tests).
	Sleep resilience.Sleeper
	// Now decides which scheduled rounds have run.
	Now func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 5 * time.Second,
		MaxSweeps:     60,
		Deadline:      10 * time.Minute,
		Concurrency:   1,
	}
}

// Result is what a run ends with. Races holds every complete round in
// round order, also for Incomplete and Cancelled runs.
type Result struct {
	RunID       string       `json:"run_id"`
	Season      int          `json:"season"`
	State       State        `json:"state"`
	Races       []model.Race `json:"races"`
	Missing     []int        `json:"missing,omitempty"`
	Sweeps      int          `json:"sweeps"`
	Transitions []State      `json:"transitions"`
}

// Loop runs reconciliations against one Source.
type Loop struct {
	src    Source
	cfg    Config
	commit CommitFunc
}

// New creates a Loop. commit may be nil.
func New(src Source, cfg Config, commit CommitFunc) *Loop {
	if cfg.Sleep == nil {
		cfg.Sleep = resilience.Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Loop{src: src, cfg: cfg, commit: commit}
}

type run struct {
	l       *Loop
	tracker *Tracker
	res     Result

	mu      sync.Mutex
	done    map[int]model.Race
	missing map[int]bool
}

// Run assembles season. tracker may be nil.
//
// The error is nil only for Complete. Incomplete returns an error wrapping
// resilience.ErrIncomplete; Cancelled returns the context's error; a client
// error or an unusable schedule fails the run immediately.
func (l *Loop) Run(ctx context.Context, season int, tracker *Tracker) (Result, error) {
	if tracker == nil {
		tracker = NewTracker()
	}
	r := &run{
		l:       l,
		tracker: tracker,
		res:     Result{RunID: uuid.NewString(), Season: season},
		done:    map[int]model.Race{},
		missing: map[int]bool{},
	}
	tracker.update(func(s *Snapshot) {
		*s = Snapshot{RunID: r.res.RunID, Season: season, State: StateIdle}
	})

	parent := ctx
	if l.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Deadline)
		defer cancel()
	}

	err := r.execute(ctx)
	if err != nil {
		switch {
		case parent.Err() != nil:
			r.transition(StateCancelled)
			err = parent.Err()
		case ctx.Err() != nil:
			r.transition(StateIncomplete)
			err = eris.Wrapf(resilience.ErrIncomplete, "season %d: deadline after %d sweeps", season, r.res.Sweeps)
		case errors.Is(err, resilience.ErrIncomplete):
			r.transition(StateIncomplete)
		default:
			r.transition(StateFailed)
		}
	}

	r.finish()
	if err != nil {
		tracker.update(func(s *Snapshot) {
			s.Err = err.Error()
			s.Retryable = resilience.Retryable(err)
		})
		lvl := zap.L().Warn
		if r.res.State == StateFailed {
			lvl = zap.L().Error
		}
		lvl("reconcile: run ended without completing",
			zap.String("run_id", r.res.RunID),
			zap.Int("season", season),
			zap.String("state", string(r.res.State)),
			zap.Ints("missing", r.res.Missing),
			zap.Error(err),
		)
	}
	return r.res, err
}

func (r *run) execute(ctx context.Context) error {
	r.transition(StateAssembling)

	schedule, err := r.l.src.Schedule(ctx, r.res.Season)
	if err != nil {
		return eris.Wrapf(err, "season %d: schedule", r.res.Season)
	}
	results, err := r.l.src.SeasonResultsPartial(ctx, r.res.Season)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if resilience.KindOf(err) == resilience.KindClientError {
			return eris.Wrapf(err, "season %d: results", r.res.Season)
		}
		zap.L().Warn("reconcile: season results incomplete, continuing with partial pages",
			zap.Int("season", r.res.Season),
			zap.Int("races", len(results)),
			zap.Error(err),
		)
	}

	r.seed(schedule, results, err != nil)
	if len(r.missing) == 0 {
		return r.complete(ctx)
	}
	r.transition(StatePartiallyComplete)

	for {
		if limit := r.l.cfg.MaxSweeps; limit > 0 && r.res.Sweeps >= limit {
			return eris.Wrapf(resilience.ErrIncomplete, "season %d: %d rounds missing after %d sweeps",
				r.res.Season, len(r.missing), r.res.Sweeps)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.l.cfg.Sleep(ctx, r.l.cfg.SweepInterval); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		r.res.Sweeps++
		r.transition(StateRetrying)
		r.sweep(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(r.missing) == 0 {
			return r.complete(ctx)
		}
	}
}

// seed records complete rounds from the season fetch and marks every
// scheduled round that has run without results as missing. When the season
// fetch stopped early, its last round may hold only the rows before the
// failed page, so that round is left to the sweeps.
func (r *run) seed(schedule, results []model.Race, truncated bool) {
	now := r.l.cfg.Now()
	cut := -1
	if truncated {
		for _, race := range results {
			cut = max(cut, race.Round)
		}
	}
	for _, race := range results {
		if race.Complete() && race.Round != cut {
			r.done[race.Round] = race
		}
	}
	for _, race := range schedule {
		if !race.HasRun(now) {
			continue
		}
		if _, ok := r.done[race.Round]; !ok {
			r.missing[race.Round] = true
		}
	}
	r.progress()
}

// sweep retries every missing round once: a direct fetch first, then a
// paged fetch if the direct one came back empty. Results that land after
// cancellation are dropped.
func (r *run) sweep(ctx context.Context) {
	rounds := r.missingRounds()
	zap.L().Debug("reconcile: sweep",
		zap.String("run_id", r.res.RunID),
		zap.Int("sweep", r.res.Sweeps),
		zap.Ints("rounds", rounds),
	)

	var g errgroup.Group
	g.SetLimit(r.l.cfg.Concurrency)
	for _, round := range rounds {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			race, err := r.l.src.RoundResults(ctx, r.res.Season, round)
			if err == nil && !race.Complete() && ctx.Err() == nil {
				race, err = r.l.src.RoundResultsPaged(ctx, r.res.Season, round)
			}
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				zap.L().Warn("reconcile: round still failing",
					zap.Int("season", r.res.Season),
					zap.Int("round", round),
					zap.String("kind", resilience.KindOf(err).String()),
					zap.Error(err),
				)
				return nil
			}
			if !race.Complete() {
				return nil
			}

			r.mu.Lock()
			r.done[round] = race
			delete(r.missing, round)
			r.mu.Unlock()
			r.progress()
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) complete(ctx context.Context) error {
	r.transition(StateComplete)
	r.finish()
	if r.l.commit == nil {
		return nil
	}
	if err := r.l.commit(ctx, r.res.Season, r.res.Races); err != nil {
		// The data is still good; only memoization failed.
		zap.L().Warn("reconcile: commit failed",
			zap.String("run_id", r.res.RunID),
			zap.Int("season", r.res.Season),
			zap.Error(err),
		)
	}
	return nil
}

func (r *run) missingRounds() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.missing))
	for round := range r.missing {
		out = append(out, round)
	}
	sort.Ints(out)
	return out
}

func (r *run) finish() {
	r.mu.Lock()
	races := make([]model.Race, 0, len(r.done))
	for _, race := range r.done {
		races = append(races, race)
	}
	r.mu.Unlock()
	sort.Slice(races, func(i, j int) bool { return races[i].Round < races[j].Round })

	r.res.Races = races
	r.res.Missing = r.missingRounds()
	if len(r.res.Missing) == 0 {
		r.res.Missing = nil
	}
}

func (r *run) progress() {
	r.mu.Lock()
	done, total := len(r.done), len(r.done)+len(r.missing)
	r.mu.Unlock()
	missing := r.missingRounds()
	r.tracker.update(func(s *Snapshot) {
		s.Done = done
		s.Total = total
		s.Missing = missing
		s.Sweeps = r.res.Sweeps
	})
}

func (r *run) transition(to State) {
	if r.res.State == to {
		return
	}
	zap.L().Debug("reconcile: transition",
		zap.String("run_id", r.res.RunID),
		zap.Int("season", r.res.Season),
		zap.String("from", string(r.res.State)),
		zap.String("to", string(to)),
	)
	r.res.State = to
	r.res.Transitions = append(r.res.Transitions, to)
	r.tracker.update(func(s *Snapshot) {
		s.State = to
		s.Sweeps = r.res.Sweeps
	})
}
