package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/config"
	"github.com/sells-group/paddock/internal/engine"
	"github.com/sells-group/paddock/internal/fetcher"
	"github.com/sells-group/paddock/internal/reconcile"
	"github.com/sells-group/paddock/internal/resilience"
	"github.com/sells-group/paddock/pkg/ergast"
)

// appEnv holds the wired engine and what must be closed with it.
type appEnv struct {
	Engine  *engine.Engine
	Cache   *cache.Session
	Fetcher *fetcher.HTTPFetcher
	Breaker *resilience.CircuitBreaker
}

// Upstream reports the breaker state and the per-host request rates.
func (e *appEnv) Upstream() upstreamStatus {
	return upstreamStatus{Circuit: e.Breaker.State().String(), Rates: e.Fetcher.Rates()}
}

// Close releases the cache backend.
func (e *appEnv) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initEngine wires fetcher → client → cache → engine from configuration.
func initEngine(ctx context.Context, c *config.Config) (*appEnv, error) {
	var backend cache.Backend
	switch c.Cache.Driver {
	case "sqlite":
		db, err := cache.NewSQLite(ctx, c.Cache.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "init cache")
		}
		backend = db
	default:
		backend = cache.NewMemory()
	}
	sess := cache.NewSession(backend)

	breakerCfg := resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("upstream circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	breaker := resilience.NewCircuitBreaker(breakerCfg)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.Upstream.UserAgent,
		Timeout:   time.Duration(c.Upstream.TimeoutSecs) * time.Second,
		Retry:     resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.BaseDelayMs),
		RateLimit: rate.Limit(c.Upstream.RatePerSec),
		Burst:     c.Upstream.Burst,
		Breaker:   breaker,
	})
	client := ergast.NewClient(f,
		ergast.WithBaseURL(c.Upstream.BaseURL),
		ergast.WithPageSize(c.Upstream.PageSize),
		ergast.WithPacing(c.Paginate.Pacing()),
	)

	eng := engine.New(client, sess, engine.Options{
		PitStopConcurrency: c.PitStops.Concurrency,
		PitStopDeadline:    time.Duration(c.PitStops.DeadlineSecs) * time.Second,
		Reconcile: reconcile.Config{
			SweepInterval: time.Duration(c.Reconcile.SweepIntervalSecs) * time.Second,
			MaxSweeps:     c.Reconcile.MaxSweeps,
			Deadline:      time.Duration(c.Reconcile.DeadlineSecs) * time.Second,
			Concurrency:   c.Reconcile.Concurrency,
		},
	})

	zap.L().Debug("engine ready",
		zap.String("upstream", c.Upstream.BaseURL),
		zap.String("cache", c.Cache.Driver),
	)
	return &appEnv{Engine: eng, Cache: sess, Fetcher: f, Breaker: breaker}, nil
}
