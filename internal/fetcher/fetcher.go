// Package fetcher implements the resilient single-request fetcher and the
// offset/limit paginator that drives it.
package fetcher

import (
	"context"
)

// Getter issues one logical GET and returns the response body of a
// successful call. Implementations absorb transient failures up to their
// retry ceiling and then fail with a *resilience.FetchError.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// GetterFunc adapts a function to the Getter interface.
type GetterFunc func(ctx context.Context, url string) ([]byte, error)

// Get calls f.
func (f GetterFunc) Get(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
