package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/paddock/internal/aggregate"
	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/model"
)

// history fetches raw race history for one entity.
type history func(ctx context.Context, id string) ([]model.Race, error)

// subject bundles what differs between driver and constructor careers.
type subject struct {
	kind        model.EntityKind
	statsDomain string
	raceDomain  string
	qualiDomain string
	results     history
	qualifying  history
}

func (e *Engine) driverSubject() subject {
	return subject{
		kind:        model.EntityDriver,
		statsDomain: cache.DomainDriverStats,
		raceDomain:  cache.DomainDriverResults,
		qualiDomain: cache.DomainDriverQuali,
		results:     e.up.DriverResults,
		qualifying:  e.up.DriverQualifying,
	}
}

func (e *Engine) constructorSubject() subject {
	return subject{
		kind:        model.EntityConstructor,
		statsDomain: cache.DomainTeamStats,
		raceDomain:  cache.DomainTeamResults,
		qualiDomain: cache.DomainTeamQuali,
		results:     e.up.ConstructorResults,
		qualifying:  e.up.ConstructorQualifying,
	}
}

// DriverCareer returns a driver's career statistics.
func (e *Engine) DriverCareer(ctx context.Context, driverID string) (model.CareerStats, error) {
	return e.career(ctx, e.driverSubject(), driverID)
}

// ConstructorCareer returns a constructor's career statistics.
func (e *Engine) ConstructorCareer(ctx context.Context, constructorID string) (model.CareerStats, error) {
	return e.career(ctx, e.constructorSubject(), constructorID)
}

// DriverRaces returns a driver's raw race history.
func (e *Engine) DriverRaces(ctx context.Context, driverID string) ([]model.Race, error) {
	s := e.driverSubject()
	return e.races(ctx, s.raceDomain, driverID, s.results)
}

func (e *Engine) races(ctx context.Context, domain, id string, fetch history) ([]model.Race, error) {
	return memo(ctx, e, cache.Key(domain, "v1", id), cache.DailyRefresh, func(ctx context.Context) ([]model.Race, error) {
		return fetch(ctx, id)
	})
}

// career folds results and qualifying fetched concurrently. Either fetch
// failing fails the whole bundle, so nothing partial is cached.
func (e *Engine) career(ctx context.Context, s subject, id string) (model.CareerStats, error) {
	key := cache.Key(s.statsDomain, "v1", id)
	return memo(ctx, e, key, cache.DailyRefresh, func(ctx context.Context) (model.CareerStats, error) {
		var results, quali []model.Race
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			results, err = e.races(gctx, s.raceDomain, id, s.results)
			return err
		})
		g.Go(func() error {
			var err error
			quali, err = e.races(gctx, s.qualiDomain, id, s.qualifying)
			return err
		})
		if err := g.Wait(); err != nil {
			return model.CareerStats{}, err
		}

		stats := aggregate.FoldCareer(s.kind, id, results)
		return aggregate.FoldQualifying(stats, quali), nil
	})
}

// CircuitStats rolls up every race held at a circuit.
func (e *Engine) CircuitStats(ctx context.Context, circuitID string) (model.CircuitStats, error) {
	key := cache.Key(cache.DomainCircuitStats, "v1", circuitID)
	return memo(ctx, e, key, cache.DailyRefresh, func(ctx context.Context) (model.CircuitStats, error) {
		races, err := e.up.CircuitWinners(ctx, circuitID)
		if err != nil {
			return model.CircuitStats{}, err
		}
		circuit := model.Circuit{ID: circuitID}
		for _, r := range races {
			if r.Circuit.ID == circuitID {
				circuit = r.Circuit
				break
			}
		}
		return aggregate.FoldCircuit(circuit, races), nil
	})
}
