package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/engine"
	"github.com/sells-group/paddock/internal/fetcher"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/reconcile"
	"github.com/sells-group/paddock/internal/resilience"
	"github.com/sells-group/paddock/pkg/ergast"
)

// stubService answers from fixed values and records the arguments it saw.
type stubService struct {
	err          error
	season       *reconcile.Result
	seasonSeen   int
	roundSeen    int
	pitRange     [2]int
	careerFor    string
	computedCall bool
}

var (
	hamilton   = model.Driver{ID: "hamilton", Code: "HAM", GivenName: "Lewis", FamilyName: "Hamilton"}
	verstappen = model.Driver{ID: "max_verstappen", Code: "VER", GivenName: "Max", FamilyName: "Verstappen"}
)

func (s *stubService) Drivers(_ context.Context, season int) ([]model.Driver, error) {
	s.seasonSeen = season
	return []model.Driver{hamilton, verstappen}, s.err
}

func (s *stubService) Constructors(_ context.Context, season int) ([]model.Constructor, error) {
	s.seasonSeen = season
	return []model.Constructor{{ID: "mercedes", Name: "Mercedes"}}, s.err
}

func (s *stubService) Circuits(_ context.Context, season int) ([]model.Circuit, error) {
	s.seasonSeen = season
	return []model.Circuit{{ID: "monza", Name: "Autodromo Nazionale di Monza"}}, s.err
}

func (s *stubService) FindDriver(_ context.Context, query string) (model.Driver, error) {
	switch query {
	case "hamilton", "Hamilton":
		return hamilton, nil
	case "max_verstappen", "verstappen":
		return verstappen, nil
	case "schumacher":
		return model.Driver{}, eris.Wrapf(engine.ErrAmbiguous, "%q matches 2 entries", query)
	}
	return model.Driver{}, eris.Wrapf(engine.ErrNotFound, "%q", query)
}

func (s *stubService) FindConstructor(_ context.Context, query string) (model.Constructor, error) {
	if query == "mercedes" {
		return model.Constructor{ID: "mercedes", Name: "Mercedes"}, nil
	}
	return model.Constructor{}, eris.Wrapf(engine.ErrNotFound, "%q", query)
}

func (s *stubService) FindCircuit(_ context.Context, query string) (model.Circuit, error) {
	if query == "monza" {
		return model.Circuit{ID: "monza", Name: "Autodromo Nazionale di Monza"}, nil
	}
	return model.Circuit{}, eris.Wrapf(engine.ErrNotFound, "%q", query)
}

func (s *stubService) DriverCareer(_ context.Context, id string) (model.CareerStats, error) {
	s.careerFor = id
	return model.CareerStats{Subject: model.EntityDriver, ID: id, Wins: 105, TotalPoints: decimal.RequireFromString("4639.5")}, s.err
}

func (s *stubService) ConstructorCareer(_ context.Context, id string) (model.CareerStats, error) {
	s.careerFor = id
	return model.CareerStats{Subject: model.EntityConstructor, ID: id}, s.err
}

func (s *stubService) CircuitStats(_ context.Context, id string) (model.CircuitStats, error) {
	return model.CircuitStats{CircuitID: id, Races: 74}, s.err
}

func (s *stubService) SeasonResults(_ context.Context, season int, _ *reconcile.Tracker) (reconcile.Result, error) {
	s.seasonSeen = season
	if s.season != nil {
		return *s.season, s.err
	}
	return reconcile.Result{Season: season, State: reconcile.StateComplete}, s.err
}

func (s *stubService) Standings(_ context.Context, season, round int) (model.SeasonStandings, error) {
	s.seasonSeen, s.roundSeen = season, round
	return model.SeasonStandings{Season: season, Round: round}, s.err
}

func (s *stubService) ComputedStandings(_ context.Context, season int, _ *reconcile.Tracker) ([]model.StandingRow, []model.StandingRow, reconcile.Result, error) {
	s.computedCall = true
	rows := []model.StandingRow{{Position: 1, ID: "hamilton", Points: decimal.NewFromInt(413)}}
	if s.season != nil {
		return rows, nil, *s.season, s.err
	}
	return rows, nil, reconcile.Result{Season: season}, s.err
}

func (s *stubService) PitStopSummary(_ context.Context, from, to int) (model.PitStopSummary, error) {
	s.pitRange = [2]int{from, to}
	return model.PitStopSummary{FromSeason: from, ToSeason: to}, s.err
}

func (s *stubService) Compare(_ context.Context, a, b string) (model.HeadToHead, error) {
	return model.HeadToHead{A: model.CareerStats{ID: a}, B: model.CareerStats{ID: b}, SharedRaces: 160}, s.err
}

func newTestServer(t *testing.T, svc *stubService) (http.Handler, *jobs, *activity) {
	t.Helper()
	jb := newJobs(context.Background(), svc.SeasonResults, time.Minute)
	feed := newActivity(3)
	return newRouter(svc, jb, feed, nil), jb, feed
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t, &stubService{})

	rr := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	decode(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "upstream")
}

func TestHealthEndpoint_ReportsUpstream(t *testing.T) {
	state := upstreamStatus{Circuit: "closed", Rates: map[string]float64{"api.jolpi.ca": 4}}
	h := newRouter(&stubService{}, newJobs(context.Background(), nil, time.Minute), newActivity(3),
		func() upstreamStatus { return state })

	var body struct {
		Status   string         `json:"status"`
		Upstream upstreamStatus `json:"upstream"`
	}
	decode(t, do(t, h, http.MethodGet, "/health"), &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, state, body.Upstream)

	state.Circuit = resilience.CircuitOpen.String()
	rr := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "open", body.Upstream.Circuit)
}

func TestHealthEndpoint_WiredToBreaker(t *testing.T) {
	env := &appEnv{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
		Breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	assert.Equal(t, upstreamStatus{Circuit: "closed", Rates: map[string]float64{}}, env.Upstream())
}

func TestDriversEndpoint_SeasonParam(t *testing.T) {
	svc := &stubService{}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/drivers")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ergast.AllSeasons, svc.seasonSeen)

	var drivers []model.Driver
	decode(t, rr, &drivers)
	assert.Len(t, drivers, 2)

	do(t, h, http.MethodGet, "/api/drivers?season=2021")
	assert.Equal(t, 2021, svc.seasonSeen)

	do(t, h, http.MethodGet, "/api/constructors?season=current")
	assert.Equal(t, ergast.Current, svc.seasonSeen)

	rr = do(t, h, http.MethodGet, "/api/circuits?season=yesterday")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCareerEndpoints(t *testing.T) {
	svc := &stubService{}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/drivers/Hamilton/career")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hamilton", svc.careerFor)
	var stats model.CareerStats
	decode(t, rr, &stats)
	assert.Equal(t, 105, stats.Wins)
	assert.True(t, decimal.RequireFromString("4639.5").Equal(stats.TotalPoints))

	rr = do(t, h, http.MethodGet, "/api/constructors/mercedes/career")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mercedes", svc.careerFor)

	rr = do(t, h, http.MethodGet, "/api/circuits/monza/stats")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLookupFailures(t *testing.T) {
	h, _, _ := newTestServer(t, &stubService{})

	rr := do(t, h, http.MethodGet, "/api/drivers/nobody/career")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/drivers/schumacher/career")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/circuits/nowhere/stats")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpstreamFailures(t *testing.T) {
	svc := &stubService{err: &resilience.FetchError{Kind: resilience.KindRateLimited, StatusCode: 429, URL: "x"}}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/drivers")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))

	svc.err = eris.Wrap(resilience.ErrIncomplete, "season 2021")
	rr = do(t, h, http.MethodGet, "/api/seasons/2021/results")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	svc.err = &resilience.FetchError{Kind: resilience.KindClientError, StatusCode: 400, URL: "x"}
	rr = do(t, h, http.MethodGet, "/api/drivers")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestStaleResponse(t *testing.T) {
	svc := &stubService{err: &engine.StaleError{Key: "drivers_v1_all", Err: eris.New("503")}}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/drivers")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(staleHeader))
}

func TestStandingsEndpoint(t *testing.T) {
	svc := &stubService{}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/seasons/2021/standings?round=10")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2021, svc.seasonSeen)
	assert.Equal(t, 10, svc.roundSeen)

	rr = do(t, h, http.MethodGet, "/api/seasons/current/standings")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ergast.Current, svc.seasonSeen)
	assert.Equal(t, 0, svc.roundSeen)

	rr = do(t, h, http.MethodGet, "/api/seasons/2021/standings?computed=true")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, svc.computedCall)

	rr = do(t, h, http.MethodGet, "/api/seasons/2021/standings?round=last")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/seasons/all/standings")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPitStopsEndpoint(t *testing.T) {
	svc := &stubService{}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/pitstops?from=2019&to=2021")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]int{2019, 2021}, svc.pitRange)

	rr = do(t, h, http.MethodGet, "/api/pitstops?to=2020")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]int{2020, 2020}, svc.pitRange)

	rr = do(t, h, http.MethodGet, "/api/pitstops?from=2022&to=2020")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompareEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t, &stubService{})

	rr := do(t, h, http.MethodGet, "/api/compare?a=hamilton&b=verstappen")
	require.Equal(t, http.StatusOK, rr.Code)
	var h2h model.HeadToHead
	decode(t, rr, &h2h)
	assert.Equal(t, "hamilton", h2h.A.ID)
	assert.Equal(t, "max_verstappen", h2h.B.ID)
	assert.Equal(t, 160, h2h.SharedRaces)

	rr = do(t, h, http.MethodGet, "/api/compare?a=hamilton")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/compare?a=hamilton&b=nobody")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSeasonJobs(t *testing.T) {
	started := make(chan int, 1)
	run := func(ctx context.Context, season int, _ *reconcile.Tracker) (reconcile.Result, error) {
		started <- season
		<-ctx.Done()
		return reconcile.Result{Season: season, State: reconcile.StateCancelled}, ctx.Err()
	}
	jb := newJobs(context.Background(), run, time.Hour)
	h := newRouter(&stubService{}, jb, newActivity(3), nil)

	rr := do(t, h, http.MethodPost, "/api/seasons/2021/jobs")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var created struct {
		ID     string `json:"id"`
		Season int    `json:"season"`
	}
	decode(t, rr, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 2021, created.Season)
	assert.Equal(t, "/api/jobs/"+created.ID, rr.Header().Get("Location"))
	assert.Equal(t, 2021, <-started)

	rr = do(t, h, http.MethodGet, "/api/jobs/"+created.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap reconcile.Snapshot
	decode(t, rr, &snap)
	assert.Equal(t, 2021, snap.Season)

	rr = do(t, h, http.MethodDelete, "/api/jobs/"+created.ID)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	j, ok := jb.Get(created.ID)
	require.True(t, ok)
	select {
	case <-j.done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop after cancel")
	}

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/jobs/unknown").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/jobs/unknown").Code)
}

func TestSeasonJobs_ForgottenAfterRetention(t *testing.T) {
	run := func(_ context.Context, season int, _ *reconcile.Tracker) (reconcile.Result, error) {
		return reconcile.Result{Season: season, State: reconcile.StateComplete}, nil
	}
	jb := newJobs(context.Background(), run, 10*time.Millisecond)
	h := newRouter(&stubService{}, jb, newActivity(3), nil)

	j := jb.Start(2021)
	<-j.done
	assert.Eventually(t, func() bool {
		_, ok := jb.Get(j.ID)
		return !ok
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/jobs/"+j.ID).Code)
}

func TestSeasonResults_IncompleteStillServed(t *testing.T) {
	res := reconcile.Result{
		Season:  2021,
		State:   reconcile.StateIncomplete,
		Races:   []model.Race{{Season: 2021, Round: 1}, {Season: 2021, Round: 2}},
		Missing: []int{3},
	}
	svc := &stubService{season: &res, err: eris.Wrap(resilience.ErrIncomplete, "season 2021")}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/seasons/2021/results")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(incompleteHeader))
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	var got reconcile.Result
	decode(t, rr, &got)
	assert.Equal(t, reconcile.StateIncomplete, got.State)
	assert.Len(t, got.Races, 2)
	assert.Equal(t, []int{3}, got.Missing)

	rr = do(t, h, http.MethodGet, "/api/seasons/2021/standings?computed=true")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(incompleteHeader))

	res.Races = nil
	rr = do(t, h, http.MethodGet, "/api/seasons/2021/results")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, rr.Header().Get(incompleteHeader))
}

func TestSeasonResults_StaleServed(t *testing.T) {
	res := reconcile.Result{
		Season: 2021,
		State:  reconcile.StateIncomplete,
		Races:  []model.Race{{Season: 2021, Round: 1}, {Season: 2021, Round: 2}, {Season: 2021, Round: 3}},
	}
	svc := &stubService{
		season: &res,
		err:    &engine.StaleError{Key: "seasonResults_v1_2021", Err: eris.Wrap(resilience.ErrIncomplete, "season 2021")},
	}
	h, _, _ := newTestServer(t, svc)

	rr := do(t, h, http.MethodGet, "/api/seasons/2021/results")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(staleHeader))
	assert.Empty(t, rr.Header().Get(incompleteHeader))
	var got reconcile.Result
	decode(t, rr, &got)
	assert.Len(t, got.Races, 3)
}

func TestActivityFeed(t *testing.T) {
	h, _, feed := newTestServer(t, &stubService{})

	for _, key := range []string{"a", "b", "c", "d"} {
		feed.Record(cache.Event{Key: key, Policy: cache.Permanent})
	}

	rr := do(t, h, http.MethodGet, "/api/activity")
	require.Equal(t, http.StatusOK, rr.Code)
	var events []cache.Event
	decode(t, rr, &events)
	require.Len(t, events, 3)
	assert.Equal(t, "d", events[0].Key)
	assert.Equal(t, "b", events[2].Key)
}

func TestCORSPreflight(t *testing.T) {
	h, _, _ := newTestServer(t, &stubService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/drivers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
