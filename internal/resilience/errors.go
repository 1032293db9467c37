// Package resilience provides the upstream error taxonomy, the backoff
// schedule and a circuit breaker for calls to the statistics API.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// Kind classifies a failed upstream call.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRateLimited is HTTP 429 or a throttle marker in the body. Retryable.
	KindRateLimited
	// KindServerTransient is HTTP 5xx. Retryable.
	KindServerTransient
	// KindClientError is any other non-2xx. Never retried.
	KindClientError
	// KindNetwork is a transport failure (reset, timeout, DNS). Retryable.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindServerTransient:
		return "server_error"
	case KindClientError:
		return "client_error"
	case KindNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// FetchError is returned by the fetcher once a call has failed for good.
type FetchError struct {
	Kind       Kind
	StatusCode int
	URL        string
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s fetching %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may try again later.
func (e *FetchError) Retryable() bool {
	return e.Kind != KindClientError
}

var (
	// ErrPartialData marks a composite result with missing pieces. It is an
	// intermediate state, not a failure.
	ErrPartialData = eris.New("partial data")
	// ErrCacheCorrupt marks an unreadable cache entry; callers treat it as a miss.
	ErrCacheCorrupt = eris.New("cache entry corrupt")
	// ErrIncomplete is returned when reconciliation gave up before all pieces arrived.
	ErrIncomplete = eris.New("composite fetch incomplete")
)

// KindOf returns the Kind of the first FetchError in err's chain.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindRateLimited
	}
	return KindUnknown
}

// Retryable reports whether err should be presented as "please retry" rather
// than a permanent failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIncomplete) {
		return true
	}
	switch KindOf(err) {
	case KindRateLimited, KindServerTransient, KindNetwork:
		return true
	case KindClientError:
		return false
	}
	return IsTransient(err)
}

// IsTransient returns true if err matches common transient network failure
// patterns (timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ClassifyStatus maps an HTTP status to a Kind. 2xx maps to KindUnknown.
func ClassifyStatus(statusCode int) Kind {
	switch {
	case statusCode == 429:
		return KindRateLimited
	case statusCode >= 500:
		return KindServerTransient
	case statusCode >= 300 || statusCode < 200:
		return KindClientError
	default:
		return KindUnknown
	}
}

// throttleMarkers are substrings the upstream puts in error bodies when it
// throttles without a 429.
var throttleMarkers = []string{
	"throttl",
	"rate limit",
	"ratelimit",
	"too many requests",
}

// IsThrottleText reports whether an upstream error message signals throttling.
func IsThrottleText(s string) bool {
	s = strings.ToLower(s)
	for _, m := range throttleMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
