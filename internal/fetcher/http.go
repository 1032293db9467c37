package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/paddock/internal/resilience"
)

const maxBodyBytes = 32 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig

	// RateLimit is the steady-state request rate per host. Zero disables
	// limiting.
	RateLimit rate.Limit
	Burst     int

	// Breaker, when set, fails calls fast after repeated exhausted retries.
	Breaker *resilience.CircuitBreaker

	// Sleep replaces the wall-clock backoff wait (tests).
	Sleep resilience.Sleeper

	// Client replaces the default HTTP client.
	Client *http.Client
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate on throttled responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("adaptive rate limit: reducing rate after throttle",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher is the resilient fetcher: one GET, classified, retried with the
// configured linear backoff on throttling, 5xx and network failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "paddock/1.0"
	}
	if opts.Sleep == nil {
		opts.Sleep = resilience.Sleep
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPFetcher{
		client:   client,
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the adaptive limiter for the URL's host, or nil when
// rate limiting is disabled.
func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	if f.opts.RateLimit <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(f.opts.RateLimit, f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// Rates returns the current request rate of every host called so far.
func (f *HTTPFetcher) Rates() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.limiters))
	for host, lim := range f.limiters {
		out[host] = float64(lim.Limit())
	}
	return out
}

// Get fetches rawURL and returns the body of a 2xx, non-throttled response.
// Failures are returned as *resilience.FetchError (or ctx.Err()).
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.ExecuteVal(ctx, f.opts.Breaker, func(ctx context.Context) ([]byte, error) {
		attempts := 0
		retry := f.opts.Retry
		retry.OnRetry = resilience.RetryLogger("GET " + rawURL)
		body, err := resilience.DoVal(ctx, retry, f.opts.Sleep, func(ctx context.Context) ([]byte, error) {
			attempts++
			return f.attempt(ctx, rawURL)
		})
		var fe *resilience.FetchError
		if errors.As(err, &fe) {
			fe.Attempts = attempts
		}
		return body, err
	})
}

// GetJSON fetches rawURL and decodes the body into v.
func (f *HTTPFetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return eris.Wrapf(err, "decode response from %s", rawURL)
	}
	return nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string) ([]byte, error) {
	lim := f.limiterFor(rawURL)
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &resilience.FetchError{Kind: resilience.KindClientError, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &resilience.FetchError{Kind: resilience.KindNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &resilience.FetchError{Kind: resilience.KindNetwork, StatusCode: resp.StatusCode, URL: rawURL, Err: err}
	}

	kind := resilience.ClassifyStatus(resp.StatusCode)
	if kind == resilience.KindUnknown {
		if throttledBody(body) {
			kind = resilience.KindRateLimited
		} else {
			if lim != nil {
				lim.OnSuccess()
			}
			return body, nil
		}
	} else if kind != resilience.KindRateLimited && resilience.IsThrottleText(snippet(body)) {
		kind = resilience.KindRateLimited
	}

	if kind == resilience.KindRateLimited && lim != nil {
		lim.OnRateLimit()
	}
	return nil, &resilience.FetchError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		URL:        rawURL,
		Err:        eris.New(snippet(body)),
	}
}

// errorBody is the shape of upstream error payloads.
type errorBody struct {
	MRData  json.RawMessage `json:"MRData"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
}

// throttledBody reports whether a 2xx body is actually a throttle notice.
func throttledBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var eb errorBody
	if err := json.Unmarshal(trimmed, &eb); err != nil {
		return false
	}
	if len(eb.MRData) > 0 {
		return false
	}
	return resilience.IsThrottleText(string(eb.Error)) ||
		resilience.IsThrottleText(eb.Message) ||
		resilience.IsThrottleText(eb.Detail)
}

func snippet(body []byte) string {
	const n = 512
	if len(body) > n {
		body = body[:n]
	}
	return string(bytes.TrimSpace(body))
}
