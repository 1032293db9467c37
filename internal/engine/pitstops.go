package engine

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/paddock/internal/aggregate"
	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/resilience"
)

// PitStopSummary scans every round of seasons from..to and returns pit stop
// extremes and the per-driver ranking. Rounds are fetched with bounded
// concurrency but folded in (season, round) order. A summary with pending
// rounds is served but not cached, so those rounds are asked again on the
// next call. The scan is bounded by Options.PitStopDeadline.
func (e *Engine) PitStopSummary(ctx context.Context, from, to int) (model.PitStopSummary, error) {
	if from > to {
		return model.PitStopSummary{}, eris.Errorf("pit stops: season range %d..%d is reversed", from, to)
	}
	key := cache.Key(cache.DomainPitStopSummary, "v1", fmt.Sprintf("%d_%d", from, to))
	final := func(s model.PitStopSummary) bool { return len(s.Pending) == 0 }
	return memoIf(ctx, e, key, e.seasonPolicy(to), func(ctx context.Context) (model.PitStopSummary, error) {
		parent := ctx
		if d := e.opts.PitStopDeadline; d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		sum, err := e.scanPitStops(ctx, from, to)
		if err != nil && parent.Err() == nil && ctx.Err() != nil {
			return model.PitStopSummary{}, eris.Wrapf(resilience.ErrIncomplete, "pit stops %d..%d: deadline", from, to)
		}
		return sum, err
	}, final)
}

func (e *Engine) scanPitStops(ctx context.Context, from, to int) (model.PitStopSummary, error) {
	var rounds []model.RaceKey
	now := e.nowFunc()
	for season := from; season <= to; season++ {
		schedule, err := e.Schedule(ctx, season)
		if err != nil {
			return model.PitStopSummary{}, err
		}
		for _, r := range schedule {
			if r.HasRun(now) {
				rounds = append(rounds, r.Key())
			}
		}
	}

	perRound := make([][]model.PitStopEntry, len(rounds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PitStopConcurrency)
	for i, k := range rounds {
		g.Go(func() error {
			stops, err := e.roundPitStops(gctx, k.Season, k.Round)
			perRound[i] = stops
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.PitStopSummary{}, err
	}

	var all []model.PitStopEntry
	withData := map[int]bool{}
	for i, stops := range perRound {
		if len(stops) > 0 {
			withData[rounds[i].Season] = true
		}
		all = append(all, stops...)
	}
	sum := aggregate.FoldPitStops(from, to, all)
	for i, stops := range perRound {
		if len(stops) == 0 && withData[rounds[i].Season] {
			sum.Pending = append(sum.Pending, rounds[i])
		}
	}
	return sum, nil
}

// roundPitStops caches a round's stops permanently once the upstream has
// published them. An empty round is not cached so it is asked again later.
func (e *Engine) roundPitStops(ctx context.Context, season, round int) ([]model.PitStopEntry, error) {
	key := cache.Key(cache.DomainPitStops, "v1", fmt.Sprintf("%d_%d", season, round))
	if stops, ok := cache.GetJSON[[]model.PitStopEntry](ctx, e.cache, key); ok {
		return stops, nil
	}
	stops, err := e.up.PitStops(ctx, season, round)
	if err != nil {
		return nil, err
	}
	if len(stops) > 0 && ctx.Err() == nil {
		e.store(ctx, key, stops, cache.Permanent)
	}
	return stops, nil
}
