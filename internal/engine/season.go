package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/paddock/internal/aggregate"
	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/reconcile"
)

// SeasonResults returns every complete round of season. A cache hit comes
// back as a Complete result without touching the upstream; otherwise a
// reconciliation run assembles the season and, only if it completes,
// caches it. tracker may be nil.
//
// When a run fails or ends Incomplete and the season was assembled earlier
// in this process, the earlier races are returned in place of the partial
// ones with a *StaleError wrapping the run's error. The result keeps the
// run's state so callers can still tell the refresh did not complete.
func (e *Engine) SeasonResults(ctx context.Context, season int, tracker *reconcile.Tracker) (reconcile.Result, error) {
	key := cache.Key(cache.DomainSeasonResults, "v1", seasonID(season))
	if races, ok := cache.GetJSON[[]model.Race](ctx, e.cache, key); ok {
		if tracker != nil {
			tracker.Settle(season, len(races))
		}
		e.remember(key, races)
		return reconcile.Result{Season: season, State: reconcile.StateComplete, Races: races}, nil
	}
	res, err := e.loop.Run(ctx, season, tracker)
	if err == nil || res.State == reconcile.StateCancelled {
		return res, err
	}
	stale, ok := recall[[]model.Race](e, key)
	if !ok || len(stale) < len(res.Races) {
		return res, err
	}
	zap.L().Warn("engine: season refresh did not complete, serving last good season",
		zap.Int("season", season),
		zap.String("state", string(res.State)),
		zap.Error(err),
	)
	res.Races = stale
	res.Missing = nil
	return res, &StaleError{Key: key, Err: err}
}

// commitSeason is the reconciliation loop's only write path.
func (e *Engine) commitSeason(ctx context.Context, season int, races []model.Race) error {
	key := cache.Key(cache.DomainSeasonResults, "v1", seasonID(season))
	e.store(ctx, key, races, e.seasonPolicy(season))
	return nil
}

// Schedule lists a season's rounds.
func (e *Engine) Schedule(ctx context.Context, season int) ([]model.Race, error) {
	key := cache.Key(cache.DomainSchedule, "v1", seasonID(season))
	return memo(ctx, e, key, e.seasonPolicy(season), func(ctx context.Context) ([]model.Race, error) {
		return e.up.Schedule(ctx, season)
	})
}

// Standings fetches both championships after round (0 for the latest)
// concurrently.
func (e *Engine) Standings(ctx context.Context, season, round int) (model.SeasonStandings, error) {
	at := "latest"
	if round > 0 {
		at = fmt.Sprint(round)
	}
	key := cache.Key(cache.DomainStandings, "v1", seasonID(season)+"_"+at)
	return memo(ctx, e, key, e.seasonPolicy(season), func(ctx context.Context) (model.SeasonStandings, error) {
		out := model.SeasonStandings{Season: season}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rows, at, err := e.up.DriverStandings(gctx, season, round)
			out.Drivers, out.Round = rows, at
			return err
		})
		g.Go(func() error {
			rows, _, err := e.up.ConstructorStandings(gctx, season, round)
			out.Constructors = rows
			return err
		})
		if err := g.Wait(); err != nil {
			return model.SeasonStandings{}, err
		}
		return out, nil
	})
}

// ComputedStandings derives both tables from assembled season results. It
// returns the reconciliation result alongside, so callers can tell whether
// the tables cover the whole season.
func (e *Engine) ComputedStandings(ctx context.Context, season int, tracker *reconcile.Tracker) (drivers, constructors []model.StandingRow, res reconcile.Result, err error) {
	res, err = e.SeasonResults(ctx, season, tracker)
	drivers, constructors = aggregate.Standings(res.Races)
	return drivers, constructors, res, err
}
