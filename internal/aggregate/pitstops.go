package aggregate

import (
	"sort"
	"time"

	"github.com/sells-group/paddock/internal/model"
)

// FoldPitStops scans stops in the given order and builds extremes and the
// per-driver ranking. Stops with an unparseable duration are dropped
// entirely and reported in Dropped; they never reach the extremes or the
// averages. Ties on fastest or slowest keep the first stop seen.
func FoldPitStops(from, to int, stops []model.PitStopEntry) model.PitStopSummary {
	sum := model.PitStopSummary{FromSeason: from, ToSeason: to}

	type acc struct {
		stops int
		total time.Duration
	}
	perDriver := map[string]*acc{}

	for _, s := range stops {
		if !s.Duration.Valid {
			sum.Dropped++
			continue
		}
		sum.Stops++

		if sum.Fastest == nil || s.Duration.Value < sum.Fastest.Duration.Value {
			fastest := s
			sum.Fastest = &fastest
		}
		if sum.Slowest == nil || s.Duration.Value > sum.Slowest.Duration.Value {
			slowest := s
			sum.Slowest = &slowest
		}

		a, ok := perDriver[s.DriverID]
		if !ok {
			a = &acc{}
			perDriver[s.DriverID] = a
		}
		a.stops++
		a.total += s.Duration.Value
	}

	sum.Rankings = make([]model.DriverPitStops, 0, len(perDriver))
	for id, a := range perDriver {
		sum.Rankings = append(sum.Rankings, model.DriverPitStops{
			DriverID: id,
			Stops:    a.stops,
			Total:    a.total,
			Average:  a.total / time.Duration(a.stops),
		})
	}
	sort.Slice(sum.Rankings, func(i, j int) bool {
		a, b := sum.Rankings[i], sum.Rankings[j]
		if a.Stops != b.Stops {
			return a.Stops > b.Stops
		}
		return a.DriverID < b.DriverID
	})
	return sum
}
