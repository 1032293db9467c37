package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/paddock/internal/aggregate"
	"github.com/sells-group/paddock/internal/model"
)

// Compare builds a head-to-head between two drivers. Both careers are
// fetched concurrently and share no state.
func (e *Engine) Compare(ctx context.Context, driverA, driverB string) (model.HeadToHead, error) {
	type side struct {
		stats model.CareerStats
		races []model.Race
	}
	load := func(ctx context.Context, id string, into *side) error {
		stats, err := e.DriverCareer(ctx, id)
		if err != nil {
			return err
		}
		races, err := e.DriverRaces(ctx, id)
		if err != nil {
			return err
		}
		into.stats, into.races = stats, races
		return nil
	}

	var a, b side
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return load(gctx, driverA, &a) })
	g.Go(func() error { return load(gctx, driverB, &b) })
	if err := g.Wait(); err != nil {
		return model.HeadToHead{}, err
	}
	return aggregate.HeadToHead(a.stats, b.stats, a.races, b.races), nil
}
