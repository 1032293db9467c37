package engine

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/paddock/internal/cache"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/pkg/ergast"
)

// Drivers lists drivers for season, or every driver for ergast.AllSeasons.
func (e *Engine) Drivers(ctx context.Context, season int) ([]model.Driver, error) {
	key := cache.Key(cache.DomainDrivers, "v1", seasonID(season))
	return memo(ctx, e, key, e.listPolicy(season), func(ctx context.Context) ([]model.Driver, error) {
		return e.up.Drivers(ctx, season)
	})
}

// Constructors lists constructors for season, or all of them.
func (e *Engine) Constructors(ctx context.Context, season int) ([]model.Constructor, error) {
	key := cache.Key(cache.DomainConstructors, "v1", seasonID(season))
	return memo(ctx, e, key, e.listPolicy(season), func(ctx context.Context) ([]model.Constructor, error) {
		return e.up.Constructors(ctx, season)
	})
}

// Circuits lists circuits for season, or all of them.
func (e *Engine) Circuits(ctx context.Context, season int) ([]model.Circuit, error) {
	key := cache.Key(cache.DomainCircuits, "v1", seasonID(season))
	return memo(ctx, e, key, e.listPolicy(season), func(ctx context.Context) ([]model.Circuit, error) {
		return e.up.Circuits(ctx, season)
	})
}

// listPolicy refreshes the all-time lists daily since new entrants appear.
func (e *Engine) listPolicy(season int) cache.Policy {
	if season == ergast.AllSeasons {
		return cache.DailyRefresh
	}
	return e.seasonPolicy(season)
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases s and strips diacritics so "Pérez" matches "perez".
func fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// find returns the single item whose id equals query, or failing that whose
// folded names contain an exact match.
func find[T any](items []T, query string, id func(T) string, names func(T) []string) (T, error) {
	var zero T
	q := fold(query)
	for _, it := range items {
		if fold(id(it)) == q {
			return it, nil
		}
	}

	var hits []T
	for _, it := range items {
		for _, n := range names(it) {
			if n != "" && fold(n) == q {
				hits = append(hits, it)
				break
			}
		}
	}
	switch len(hits) {
	case 0:
		return zero, eris.Wrapf(ErrNotFound, "%q", query)
	case 1:
		return hits[0], nil
	}
	return zero, eris.Wrapf(ErrAmbiguous, "%q matches %d entries", query, len(hits))
}

// FindDriver resolves an id, full name, surname or three-letter code.
func (e *Engine) FindDriver(ctx context.Context, query string) (model.Driver, error) {
	all, err := e.Drivers(ctx, ergast.AllSeasons)
	if err != nil && len(all) == 0 {
		return model.Driver{}, err
	}
	return find(all, query,
		func(d model.Driver) string { return d.ID },
		func(d model.Driver) []string { return []string{d.Name(), d.FamilyName, d.Code} },
	)
}

// FindConstructor resolves an id or team name.
func (e *Engine) FindConstructor(ctx context.Context, query string) (model.Constructor, error) {
	all, err := e.Constructors(ctx, ergast.AllSeasons)
	if err != nil && len(all) == 0 {
		return model.Constructor{}, err
	}
	return find(all, query,
		func(c model.Constructor) string { return c.ID },
		func(c model.Constructor) []string { return []string{c.Name} },
	)
}

// FindCircuit resolves an id, circuit name or locality.
func (e *Engine) FindCircuit(ctx context.Context, query string) (model.Circuit, error) {
	all, err := e.Circuits(ctx, ergast.AllSeasons)
	if err != nil && len(all) == 0 {
		return model.Circuit{}, err
	}
	return find(all, query,
		func(c model.Circuit) string { return c.ID },
		func(c model.Circuit) []string { return []string{c.Name, c.Location.Locality} },
	)
}
