package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/engine"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/reconcile"
	"github.com/sells-group/paddock/internal/resilience"
	"github.com/sells-group/paddock/pkg/ergast"
)

var servePort int

// statsService is what the HTTP API serves from; *engine.Engine
// implements it.
type statsService interface {
	Drivers(ctx context.Context, season int) ([]model.Driver, error)
	Constructors(ctx context.Context, season int) ([]model.Constructor, error)
	Circuits(ctx context.Context, season int) ([]model.Circuit, error)
	FindDriver(ctx context.Context, query string) (model.Driver, error)
	FindConstructor(ctx context.Context, query string) (model.Constructor, error)
	FindCircuit(ctx context.Context, query string) (model.Circuit, error)
	DriverCareer(ctx context.Context, driverID string) (model.CareerStats, error)
	ConstructorCareer(ctx context.Context, constructorID string) (model.CareerStats, error)
	CircuitStats(ctx context.Context, circuitID string) (model.CircuitStats, error)
	SeasonResults(ctx context.Context, season int, tracker *reconcile.Tracker) (reconcile.Result, error)
	Standings(ctx context.Context, season, round int) (model.SeasonStandings, error)
	ComputedStandings(ctx context.Context, season int, tracker *reconcile.Tracker) ([]model.StandingRow, []model.StandingRow, reconcile.Result, error)
	PitStopSummary(ctx context.Context, from, to int) (model.PitStopSummary, error)
	Compare(ctx context.Context, driverA, driverB string) (model.HeadToHead, error)
}

var _ statsService = (*engine.Engine)(nil)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve statistics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		feed := newActivity(100)
		unsubscribe := env.Cache.Subscribe(feed.Record)
		defer unsubscribe()

		jb := newJobs(ctx, env.Engine.SeasonResults, time.Duration(cfg.Server.JobRetentionSecs)*time.Second)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Engine, jb, feed, env.Upstream),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// upstreamStatus is the upstream part of /health.
type upstreamStatus struct {
	Circuit string             `json:"circuit"`
	Rates   map[string]float64 `json:"rates,omitempty"`
}

// newRouter wires the HTTP API. upstream may be nil.
func newRouter(svc statsService, jb *jobs, feed *activity, upstream func() upstreamStatus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{staleHeader, incompleteHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if upstream != nil {
			up := upstream()
			if up.Circuit != resilience.CircuitClosed.String() {
				body["status"] = "degraded"
			}
			body["upstream"] = up
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/drivers", func(w http.ResponseWriter, r *http.Request) {
			season, ok := querySeason(w, r)
			if !ok {
				return
			}
			v, err := svc.Drivers(r.Context(), season)
			respond(w, v, err)
		})
		r.Get("/drivers/{query}/career", func(w http.ResponseWriter, r *http.Request) {
			d, err := svc.FindDriver(r.Context(), chi.URLParam(r, "query"))
			if !resolved(w, err) {
				return
			}
			v, err := svc.DriverCareer(r.Context(), d.ID)
			respond(w, v, err)
		})

		r.Get("/constructors", func(w http.ResponseWriter, r *http.Request) {
			season, ok := querySeason(w, r)
			if !ok {
				return
			}
			v, err := svc.Constructors(r.Context(), season)
			respond(w, v, err)
		})
		r.Get("/constructors/{query}/career", func(w http.ResponseWriter, r *http.Request) {
			c, err := svc.FindConstructor(r.Context(), chi.URLParam(r, "query"))
			if !resolved(w, err) {
				return
			}
			v, err := svc.ConstructorCareer(r.Context(), c.ID)
			respond(w, v, err)
		})

		r.Get("/circuits", func(w http.ResponseWriter, r *http.Request) {
			season, ok := querySeason(w, r)
			if !ok {
				return
			}
			v, err := svc.Circuits(r.Context(), season)
			respond(w, v, err)
		})
		r.Get("/circuits/{query}/stats", func(w http.ResponseWriter, r *http.Request) {
			c, err := svc.FindCircuit(r.Context(), chi.URLParam(r, "query"))
			if !resolved(w, err) {
				return
			}
			v, err := svc.CircuitStats(r.Context(), c.ID)
			respond(w, v, err)
		})

		r.Route("/seasons/{season}", func(r chi.Router) {
			r.Get("/results", func(w http.ResponseWriter, r *http.Request) {
				season, ok := pathSeason(w, r)
				if !ok {
					return
				}
				v, err := svc.SeasonResults(r.Context(), season, nil)
				respondSeason(w, v, v, err)
			})
			r.Get("/standings", func(w http.ResponseWriter, r *http.Request) {
				season, ok := pathSeason(w, r)
				if !ok {
					return
				}
				if r.URL.Query().Get("computed") == "true" {
					drivers, constructors, res, err := svc.ComputedStandings(r.Context(), season, nil)
					respondSeason(w, map[string]any{
						"season":       res.Season,
						"state":        res.State,
						"missing":      res.Missing,
						"drivers":      drivers,
						"constructors": constructors,
					}, res, err)
					return
				}
				round, ok := queryInt(w, r, "round", 0)
				if !ok {
					return
				}
				v, err := svc.Standings(r.Context(), season, round)
				respond(w, v, err)
			})
			r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
				season, ok := pathSeason(w, r)
				if !ok {
					return
				}
				j := jb.Start(season)
				w.Header().Set("Location", "/api/jobs/"+j.ID)
				writeJSON(w, http.StatusAccepted, map[string]any{"id": j.ID, "season": season})
			})
		})

		r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			j, ok := jb.Get(chi.URLParam(r, "id"))
			if !ok {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			snap := j.tracker.Snapshot()
			snap.Season = j.Season
			writeJSON(w, http.StatusOK, snap)
		})
		r.Delete("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			if !jb.Cancel(chi.URLParam(r, "id")) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/pitstops", func(w http.ResponseWriter, r *http.Request) {
			to, ok := queryInt(w, r, "to", time.Now().Year())
			if !ok {
				return
			}
			from, ok := queryInt(w, r, "from", to)
			if !ok {
				return
			}
			if from > to {
				writeError(w, http.StatusBadRequest, "from is after to")
				return
			}
			v, err := svc.PitStopSummary(r.Context(), from, to)
			respond(w, v, err)
		})

		r.Get("/compare", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("a") == "" || q.Get("b") == "" {
				writeError(w, http.StatusBadRequest, "a and b are required")
				return
			}
			a, err := svc.FindDriver(r.Context(), q.Get("a"))
			if !resolved(w, err) {
				return
			}
			b, err := svc.FindDriver(r.Context(), q.Get("b"))
			if !resolved(w, err) {
				return
			}
			v, err := svc.Compare(r.Context(), a.ID, b.ID)
			respond(w, v, err)
		})

		r.Get("/activity", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, feed.Recent())
		})
	})

	return r
}

// staleHeader marks a response served from the last good value after a
// failed refresh.
const staleHeader = "X-Paddock-Stale"

// incompleteHeader marks a season response assembled from fewer rounds than
// have run. Retry-After says when to ask again.
const incompleteHeader = "X-Paddock-Incomplete"

// respondSeason is respond for values built from a reconciliation run. An
// Incomplete run that assembled some rounds is still served.
func respondSeason(w http.ResponseWriter, v any, res reconcile.Result, err error) {
	var stale *engine.StaleError
	if errors.Is(err, resilience.ErrIncomplete) && !errors.As(err, &stale) && len(res.Races) > 0 {
		w.Header().Set(incompleteHeader, "true")
		w.Header().Set("Retry-After", "30")
		err = nil
	}
	respond(w, v, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respond writes v, or the HTTP rendering of err.
func respond(w http.ResponseWriter, v any, err error) {
	var stale *engine.StaleError
	if errors.As(err, &stale) {
		w.Header().Set(staleHeader, "true")
		err = nil
	}
	if err != nil {
		failed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// resolved reports whether a name lookup succeeded, writing the failure
// otherwise. A stale lookup still resolves.
func resolved(w http.ResponseWriter, err error) bool {
	var stale *engine.StaleError
	if err == nil || errors.As(err, &stale) {
		return true
	}
	failed(w, err)
	return false
}

func failed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrAmbiguous):
		writeError(w, http.StatusConflict, err.Error())
	case resilience.Retryable(err):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "upstream unavailable, please retry")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// seasonParam parses a year, "current" or "all".
func seasonParam(s string, allowAll bool) (int, error) {
	switch s {
	case "current":
		return ergast.Current, nil
	case "all", "":
		if allowAll {
			return ergast.AllSeasons, nil
		}
	default:
		if n, err := strconv.Atoi(s); err == nil && n >= 1950 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid season %q", s)
}

func querySeason(w http.ResponseWriter, r *http.Request) (int, bool) {
	season, err := seasonParam(r.URL.Query().Get("season"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return season, true
}

func pathSeason(w http.ResponseWriter, r *http.Request) (int, bool) {
	season, err := seasonParam(chi.URLParam(r, "season"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return season, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return n, true
}
