package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/paddock/internal/model"
)

type standingAcc struct {
	row      model.StandingRow
	finishes map[int]int
	seen     map[model.RaceKey]bool
}

// Standings builds both championship tables from race results. Rows are
// ordered by points, then wins, then countback (more second places, third
// places and so on), then id.
func Standings(races []model.Race) (drivers, constructors []model.StandingRow) {
	d := map[string]*standingAcc{}
	c := map[string]*standingAcc{}

	for _, r := range chronological(races) {
		for _, e := range r.Results {
			tally(d, r.Key(), e.Driver.ID, e.Driver.Name(), e)
			tally(c, r.Key(), e.Constructor.ID, e.Constructor.Name, e)
		}
	}
	return rank(d), rank(c)
}

func tally(m map[string]*standingAcc, key model.RaceKey, id, name string, e model.ResultEntry) {
	if id == "" {
		return
	}
	a, ok := m[id]
	if !ok {
		a = &standingAcc{
			row:      model.StandingRow{ID: id, Name: name, Points: decimal.Zero},
			finishes: map[int]int{},
			seen:     map[model.RaceKey]bool{},
		}
		m[id] = a
	}
	if !a.seen[key] {
		a.seen[key] = true
		a.row.Races++
	}
	if e.Points.Valid {
		a.row.Points = a.row.Points.Add(e.Points.Value)
	}
	if e.Position.Valid {
		a.finishes[e.Position.Value]++
	}
	if e.Position.Is(1) {
		a.row.Wins++
	}
}

func rank(m map[string]*standingAcc) []model.StandingRow {
	accs := make([]*standingAcc, 0, len(m))
	deepest := 0
	for _, a := range m {
		accs = append(accs, a)
		for p := range a.finishes {
			deepest = max(deepest, p)
		}
	}

	sort.Slice(accs, func(i, j int) bool {
		a, b := accs[i], accs[j]
		if cmp := a.row.Points.Cmp(b.row.Points); cmp != 0 {
			return cmp > 0
		}
		if a.row.Wins != b.row.Wins {
			return a.row.Wins > b.row.Wins
		}
		for p := 2; p <= deepest; p++ {
			if a.finishes[p] != b.finishes[p] {
				return a.finishes[p] > b.finishes[p]
			}
		}
		return a.row.ID < b.row.ID
	})

	rows := make([]model.StandingRow, len(accs))
	for i, a := range accs {
		rows[i] = a.row
		rows[i].Position = i + 1
	}
	return rows
}
