// Package aggregate holds the pure folds that turn assembled race data into
// statistics. Every fold sorts its input by (season, round) before scanning
// and sorts its output explicitly, so equal inputs produce equal outputs
// regardless of the order the races arrived in.
package aggregate

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/sells-group/paddock/internal/model"
)

// chronological returns a copy of races ordered by (season, round).
func chronological(races []model.Race) []model.Race {
	out := append([]model.Race(nil), races...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key().Less(out[j].Key())
	})
	return out
}

// subjectOf extracts the id and display name that an entry belongs to for
// the given subject kind, plus the partner used for the breakdown.
func subjectOf(kind model.EntityKind, e model.ResultEntry) (id, name, partnerID, partnerName string) {
	if kind == model.EntityConstructor {
		return e.Constructor.ID, e.Constructor.Name, e.Driver.ID, e.Driver.Name()
	}
	return e.Driver.ID, e.Driver.Name(), e.Constructor.ID, e.Constructor.Name
}

// FoldCareer folds race results into career statistics for one driver or
// constructor. Entries belonging to anyone else are ignored.
//
// Every entry counts toward points. Only entries with a numeric position
// count toward the average finish; a "DNF" adds a race but leaves the
// average's denominator alone. Unparseable points add nothing and are
// counted in Unparsed.
func FoldCareer(kind model.EntityKind, id string, races []model.Race) model.CareerStats {
	stats := model.CareerStats{Subject: kind, ID: id, TotalPoints: decimal.Zero}

	bySeason := map[int]decimal.Decimal{}
	partners := map[string]*model.BreakdownRow{}
	finishSum := 0

	for _, r := range chronological(races) {
		started := false
		partnerSeen := map[string]bool{}

		for _, e := range r.Results {
			sid, sname, pid, pname := subjectOf(kind, e)
			if sid != id {
				continue
			}
			if stats.Name == "" {
				stats.Name = sname
			}
			started = true

			pts := decimal.Zero
			if e.Points.Valid {
				pts = e.Points.Value
			} else {
				stats.Unparsed++
			}
			stats.TotalPoints = stats.TotalPoints.Add(pts)
			bySeason[r.Season] = bySeason[r.Season].Add(pts)

			if e.Position.Valid {
				stats.Classified++
				finishSum += e.Position.Value
				if e.Position.Value <= 3 {
					stats.Podiums++
				}
			}
			if e.Position.Is(1) {
				stats.Wins++
			}

			row, ok := partners[pid]
			if !ok {
				row = &model.BreakdownRow{
					ID:          pid,
					Name:        pname,
					Points:      decimal.Zero,
					FirstSeason: r.Season,
					FirstRound:  r.Round,
				}
				partners[pid] = row
			}
			if !partnerSeen[pid] {
				row.Races++
				partnerSeen[pid] = true
			}
			if e.Position.Is(1) {
				row.Wins++
			}
			row.Points = row.Points.Add(pts)
		}

		if started {
			stats.Races++
		}
	}

	if stats.Classified > 0 {
		avg := float64(finishSum) / float64(stats.Classified)
		stats.AvgFinish = &avg
	}

	stats.PointsBySeason = lo.MapToSlice(bySeason, func(season int, pts decimal.Decimal) model.SeasonPoints {
		return model.SeasonPoints{Season: season, Points: pts}
	})
	sort.Slice(stats.PointsBySeason, func(i, j int) bool {
		return stats.PointsBySeason[i].Season < stats.PointsBySeason[j].Season
	})
	stats.Seasons = len(stats.PointsBySeason)

	stats.Breakdown = make([]model.BreakdownRow, 0, len(partners))
	for _, row := range partners {
		stats.Breakdown = append(stats.Breakdown, *row)
	}
	sortBreakdown(stats.Breakdown)
	return stats
}

// sortBreakdown orders rows by first appearance, then by id.
func sortBreakdown(rows []model.BreakdownRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.FirstSeason != b.FirstSeason {
			return a.FirstSeason < b.FirstSeason
		}
		if a.FirstRound != b.FirstRound {
			return a.FirstRound < b.FirstRound
		}
		return a.ID < b.ID
	})
}

// FoldQualifying adds pole and qualifying figures to stats. It mirrors
// FoldCareer: only numeric positions count toward the average.
func FoldQualifying(stats model.CareerStats, races []model.Race) model.CareerStats {
	stats.Poles = 0
	stats.Qualified = 0
	stats.AvgQualifying = nil

	sum := 0
	for _, r := range chronological(races) {
		for _, q := range r.Qualifying {
			qid := q.Driver.ID
			if stats.Subject == model.EntityConstructor {
				qid = q.Constructor.ID
			}
			if qid != stats.ID || !q.Position.Valid {
				continue
			}
			stats.Qualified++
			sum += q.Position.Value
			if q.Position.Value == 1 {
				stats.Poles++
			}
		}
	}
	if stats.Qualified > 0 {
		avg := float64(sum) / float64(stats.Qualified)
		stats.AvgQualifying = &avg
	}
	return stats
}
