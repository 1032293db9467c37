package fetcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/resilience"
)

// DefaultPageSize is the largest page the upstream serves.
const DefaultPageSize = 100

// PageURL builds the URL of the page starting at offset.
type PageURL func(offset, limit int) string

// Page is one decoded page: its items plus the collection's advertised total.
type Page[T any] struct {
	Items []T
	Total int
}

// PageDecoder turns a response body into a Page.
type PageDecoder[T any] func(body []byte) (Page[T], error)

// PageConfig controls a paginated run.
type PageConfig struct {
	// Size is the limit requested per page. Default: DefaultPageSize.
	Size int
	// Pacing is the fixed wait between consecutive page requests.
	Pacing time.Duration
	// Sleep replaces the wall-clock pacing wait (tests).
	Sleep resilience.Sleeper
	// OnPage is called after each page with items collected so far and total.
	OnPage func(collected, total int)
}

// Paginate requests pages in increasing offset order until the advertised
// total is reached and returns the concatenation in upstream order. Any
// failure discards the pages already collected.
func Paginate[T any](ctx context.Context, g Getter, pageURL PageURL, cfg PageConfig, decode PageDecoder[T]) ([]T, error) {
	items, err := PaginatePartial(ctx, g, pageURL, cfg, decode)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// PaginatePartial is Paginate for best-effort callers: on failure it returns
// the items of every page fetched before the failure alongside the error.
func PaginatePartial[T any](ctx context.Context, g Getter, pageURL PageURL, cfg PageConfig, decode PageDecoder[T]) ([]T, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = resilience.Sleep
	}

	var out []T
	offset, total := 0, 0
	for offset == 0 || offset < total {
		if offset > 0 {
			if err := sleep(ctx, cfg.Pacing); err != nil {
				return out, err
			}
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		u := pageURL(offset, size)
		body, err := g.Get(ctx, u)
		if err != nil {
			return out, err
		}
		page, err := decode(body)
		if err != nil {
			return out, eris.Wrapf(err, "paginate: decode page at offset %d", offset)
		}

		total = page.Total
		out = append(out, page.Items...)
		if cfg.OnPage != nil {
			cfg.OnPage(len(out), total)
		}
		zap.L().Debug("fetched page",
			zap.String("url", u),
			zap.Int("offset", offset),
			zap.Int("total", total),
		)

		if total == 0 {
			break
		}
		offset += size
	}
	return out, nil
}
