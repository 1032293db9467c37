// Package engine is the single retrieval path behind every view: check the
// cache, fetch through the paginated upstream client on a miss, fold, and
// memoize only what completed.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/reconcile"
	"github.com/sells-group/paddock/pkg/ergast"
)

// Upstream is the slice of the ergast client the engine depends on.
type Upstream interface {
	reconcile.Source

	Drivers(ctx context.Context, season int) ([]model.Driver, error)
	Constructors(ctx context.Context, season int) ([]model.Constructor, error)
	Circuits(ctx context.Context, season int) ([]model.Circuit, error)

	DriverResults(ctx context.Context, driverID string) ([]model.Race, error)
	DriverQualifying(ctx context.Context, driverID string) ([]model.Race, error)
	ConstructorResults(ctx context.Context, constructorID string) ([]model.Race, error)
	ConstructorQualifying(ctx context.Context, constructorID string) ([]model.Race, error)
	CircuitWinners(ctx context.Context, circuitID string) ([]model.Race, error)

	PitStops(ctx context.Context, season, round int) ([]model.PitStopEntry, error)
	DriverStandings(ctx context.Context, season, round int) ([]model.DriverStanding, int, error)
	ConstructorStandings(ctx context.Context, season, round int) ([]model.ConstructorStanding, int, error)
}

var _ Upstream = (*ergast.Client)(nil)

// Options tunes an Engine.
type Options struct {
	Reconcile reconcile.Config
	// PitStopConcurrency bounds concurrent per-round pit stop fetches.
	PitStopConcurrency int
	// PitStopDeadline bounds one pit stop summary. Zero means no deadline.
	PitStopDeadline time.Duration
	// Now drives freshness decisions. Default: time.Now.
	Now func() time.Time
}

// Engine serves statistics out of the cache or the upstream.
type Engine struct {
	up      Upstream
	cache   cache.Cache
	loop    *reconcile.Loop
	opts    Options
	nowFunc func() time.Time

	// lastGood keeps the most recent payload served per key so that a failed
	// refresh can still show something.
	mu       sync.RWMutex
	lastGood map[string][]byte
}

// New creates an Engine.
func New(up Upstream, c cache.Cache, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PitStopConcurrency <= 0 {
		opts.PitStopConcurrency = 2
	}
	if opts.Reconcile.Now == nil {
		opts.Reconcile.Now = opts.Now
	}
	e := &Engine{
		up:       up,
		cache:    c,
		opts:     opts,
		nowFunc:  opts.Now,
		lastGood: map[string][]byte{},
	}
	e.loop = reconcile.New(up, opts.Reconcile, e.commitSeason)
	return e
}

// StaleError reports that a refresh failed and the returned value is the
// last one successfully served for the same key.
type StaleError struct {
	Key string
	Err error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("serving stale %s: %v", e.Key, e.Err)
}

func (e *StaleError) Unwrap() error { return e.Err }

// memo is the one cache-or-fetch path. fetch runs only on a miss, and its
// value is cached only when it returned without error and ctx is still live.
// If fetch fails and an earlier value for key exists, that value is
// returned with a *StaleError.
func memo[T any](ctx context.Context, e *Engine, key string, policy cache.Policy, fetch func(context.Context) (T, error)) (T, error) {
	return memoIf(ctx, e, key, policy, fetch, nil)
}

// memoIf is memo for values that can be served before they are final. A
// value that keep rejects is returned and remembered but not cached.
func memoIf[T any](ctx context.Context, e *Engine, key string, policy cache.Policy, fetch func(context.Context) (T, error), keep func(T) bool) (T, error) {
	if v, ok := cache.GetJSON[T](ctx, e.cache, key); ok {
		e.remember(key, v)
		return v, nil
	}

	v, err := fetch(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		var zero T
		if stale, ok := recall[T](e, key); ok {
			zap.L().Warn("engine: refresh failed, serving last good value", zap.String("key", key), zap.Error(err))
			return stale, &StaleError{Key: key, Err: err}
		}
		return zero, err
	}

	if keep != nil && !keep(v) {
		zap.L().Debug("engine: value not final, not cached", zap.String("key", key))
		e.remember(key, v)
		return v, nil
	}
	e.store(ctx, key, v, policy)
	return v, nil
}

func (e *Engine) store(ctx context.Context, key string, v any, policy cache.Policy) {
	if err := cache.PutJSON(ctx, e.cache, key, v, policy); err != nil {
		zap.L().Warn("engine: cache write failed", zap.String("key", key), zap.Error(err))
	}
	e.remember(key, v)
}

func (e *Engine) remember(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.lastGood[key] = raw
	e.mu.Unlock()
}

func recall[T any](e *Engine, key string) (T, bool) {
	var v T
	e.mu.RLock()
	raw, ok := e.lastGood[key]
	e.mu.RUnlock()
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// currentYear is the season treated as live.
func (e *Engine) currentYear() int {
	return e.nowFunc().Year()
}

// seasonPolicy keeps finished seasons forever and refreshes the live one
// daily.
func (e *Engine) seasonPolicy(season int) cache.Policy {
	if season == ergast.Current || season >= e.currentYear() {
		return cache.DailyRefresh
	}
	return cache.Permanent
}

func seasonID(season int) string {
	switch season {
	case ergast.AllSeasons:
		return "all"
	case ergast.Current:
		return "current"
	}
	return fmt.Sprint(season)
}

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = eris.New("not found")

// ErrAmbiguous is returned when a name lookup matches several entities.
var ErrAmbiguous = eris.New("ambiguous name")
