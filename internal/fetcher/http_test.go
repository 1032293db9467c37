package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/paddock/internal/resilience"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestFetcher(rec *sleepRecorder, attempts int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		Retry:     resilience.RetryConfig{MaxAttempts: attempts, BaseDelay: 500 * time.Millisecond},
		Sleep:     rec.sleep,
	})
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"MRData":{"total":"0"}}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	body, err := newTestFetcher(rec, 4).Get(context.Background(), srv.URL+"/f1/drivers.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"MRData":{"total":"0"}}`, string(body))
	assert.Empty(t, rec.waits)
}

func TestGet_AlwaysThrottled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f := newTestFetcher(rec, 5)
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *resilience.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, resilience.KindRateLimited, fe.Kind)
	assert.Equal(t, 5, fe.Attempts)
	assert.Equal(t, int32(5), calls.Load())

	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2000 * time.Millisecond,
	}, rec.waits)
}

func TestGet_ServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"MRData":{}}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestFetcher(rec, 5).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, rec.waits, 2)
}

func TestGet_ServerErrorExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(&sleepRecorder{}, 3).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, resilience.KindServerTransient, resilience.KindOf(err))
	assert.True(t, resilience.Retryable(err))
}

func TestGet_ClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found."}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestFetcher(rec, 5).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, resilience.KindClientError, resilience.KindOf(err))
	assert.False(t, resilience.Retryable(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.waits)
}

func TestGet_ThrottleMarkerOnNon429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail":"Request was throttled. Expected available in 1 second."}`))
			return
		}
		w.Write([]byte(`{"MRData":{"total":"0"}}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestFetcher(rec, 3).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.waits)
}

func TestGet_ThrottleMarkerOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(&sleepRecorder{}, 2).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, resilience.KindRateLimited, resilience.KindOf(err))
}

func TestGet_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestFetcher(rec, 2).Get(context.Background(), addr)
	require.Error(t, err)
	assert.Equal(t, resilience.KindNetwork, resilience.KindOf(err))
	assert.Len(t, rec.waits, 1)
}

func TestGet_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher(&sleepRecorder{}, 5).Get(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGet_BreakerOpensAfterExhaustedCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f := NewHTTPFetcher(HTTPOptions{
		Retry:   resilience.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond},
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}),
		Sleep:   rec.sleep,
	})
	for i := 0; i < 2; i++ {
		_, err := f.Get(context.Background(), srv.URL)
		require.Error(t, err)
	}
	assert.Equal(t, int32(4), calls.Load())

	_, err := f.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(4), calls.Load())
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"monza"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, newTestFetcher(&sleepRecorder{}, 1).GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "monza", out.Name)
}

func TestAdaptiveLimiter(t *testing.T) {
	a := NewAdaptiveLimiter(4, 4)
	a.OnRateLimit()
	assert.Equal(t, rate.Limit(2), a.Limit())
	a.OnRateLimit()
	a.OnRateLimit()
	assert.Equal(t, rate.Limit(1), a.Limit())
	for i := 0; i < 20; i++ {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(8), a.Limit())
}

func TestRates_ReportsEachHost(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{RateLimit: 4, Burst: 2})
	assert.Empty(t, f.Rates())

	f.limiterFor("https://api.jolpi.ca/ergast/f1/2024.json").OnRateLimit()
	f.limiterFor("https://example.com/x")
	assert.Equal(t, map[string]float64{"api.jolpi.ca": 2, "example.com": 4}, f.Rates())
}

func TestLimiterFor_PerHost(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{RateLimit: 4, Burst: 2})
	a := f.limiterFor("https://api.jolpi.ca/ergast/f1/2024.json")
	b := f.limiterFor("https://api.jolpi.ca/ergast/f1/2023.json")
	c := f.limiterFor("https://example.com/x")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	assert.Nil(t, NewHTTPFetcher(HTTPOptions{}).limiterFor("https://api.jolpi.ca"))
}
