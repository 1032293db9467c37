package export

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/sells-group/paddock/internal/model"
)

func itoa(n int) string { return strconv.Itoa(n) }

func position(p model.Position, text string) string {
	if p.Valid {
		return itoa(p.Value)
	}
	if text != "" {
		return text
	}
	return "-"
}

func points(p model.Points) string {
	if !p.Valid {
		return "?"
	}
	return p.Value.String()
}

func avg(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Standings renders an upstream championship snapshot.
func Standings(s model.SeasonStandings) Document {
	drivers := Table{
		Name:   "Drivers",
		Header: []string{"Pos", "Driver", "Constructor", "Points", "Wins"},
		Rows: lo.Map(s.Drivers, func(d model.DriverStanding, _ int) []string {
			teams := lo.Map(d.Constructors, func(c model.Constructor, _ int) string { return c.Name })
			team := ""
			if len(teams) > 0 {
				team = teams[len(teams)-1]
			}
			return []string{position(d.Position, d.PositionText), d.Driver.Name(), team, points(d.Points), itoa(d.Wins)}
		}),
	}
	constructors := Table{
		Name:   "Constructors",
		Header: []string{"Pos", "Constructor", "Points", "Wins"},
		Rows: lo.Map(s.Constructors, func(c model.ConstructorStanding, _ int) []string {
			return []string{position(c.Position, c.PositionText), c.Constructor.Name, points(c.Points), itoa(c.Wins)}
		}),
	}
	return Document{Value: s, Tables: []Table{drivers, constructors}}
}

// ComputedStandings renders tables assembled from race results.
func ComputedStandings(season int, drivers, constructors []model.StandingRow) Document {
	rows := func(in []model.StandingRow) [][]string {
		return lo.Map(in, func(r model.StandingRow, _ int) []string {
			return []string{itoa(r.Position), r.Name, r.Points.String(), itoa(r.Wins), itoa(r.Races)}
		})
	}
	header := []string{"Pos", "Name", "Points", "Wins", "Races"}
	return Document{
		Value: map[string]any{"season": season, "drivers": drivers, "constructors": constructors},
		Tables: []Table{
			{Name: "Drivers", Header: header, Rows: rows(drivers)},
			{Name: "Constructors", Header: header, Rows: rows(constructors)},
		},
	}
}

// Career renders career statistics.
func Career(c model.CareerStats) Document {
	summary := Table{
		Name:   "Summary",
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Name", c.Name},
			{"Races", itoa(c.Races)},
			{"Wins", itoa(c.Wins)},
			{"Podiums", itoa(c.Podiums)},
			{"Poles", itoa(c.Poles)},
			{"Seasons", itoa(c.Seasons)},
			{"Points", c.TotalPoints.String()},
			{"Avg finish", avg(c.AvgFinish)},
			{"Avg qualifying", avg(c.AvgQualifying)},
		},
	}
	seasons := Table{
		Name:   "Points by season",
		Header: []string{"Season", "Points"},
		Rows: lo.Map(c.PointsBySeason, func(s model.SeasonPoints, _ int) []string {
			return []string{itoa(s.Season), s.Points.String()}
		}),
	}
	breakdown := Table{
		Name:   "Breakdown",
		Header: []string{"ID", "Name", "Races", "Wins", "Points", "First"},
		Rows: lo.Map(c.Breakdown, func(b model.BreakdownRow, _ int) []string {
			return []string{b.ID, b.Name, itoa(b.Races), itoa(b.Wins), b.Points.String(), fmt.Sprintf("%d/%d", b.FirstSeason, b.FirstRound)}
		}),
	}
	return Document{Value: c, Tables: []Table{summary, seasons, breakdown}}
}

// PitStops renders a pit stop summary.
func PitStops(s model.PitStopSummary) Document {
	extreme := func(label string, e *model.PitStopEntry) []string {
		if e == nil {
			return []string{label, "-", "-", "-"}
		}
		return []string{label, e.DriverID, fmt.Sprintf("%d/%d", e.Season, e.Round), fmt.Sprintf("%.3f", e.Duration.Seconds())}
	}
	return Document{
		Value: s,
		Tables: []Table{
			{
				Name:   "Extremes",
				Header: []string{"", "Driver", "Race", "Seconds"},
				Rows:   [][]string{extreme("Fastest", s.Fastest), extreme("Slowest", s.Slowest)},
			},
			{
				Name:   "Rankings",
				Header: []string{"Driver", "Stops", "Average"},
				Rows: lo.Map(s.Rankings, func(r model.DriverPitStops, _ int) []string {
					return []string{r.DriverID, itoa(r.Stops), fmt.Sprintf("%.3f", r.Average.Seconds())}
				}),
			},
		},
	}
}

// Circuit renders a circuit rollup.
func Circuit(c model.CircuitStats) Document {
	return Document{
		Value: c,
		Tables: []Table{
			{
				Name:   "Winners",
				Header: []string{"Season", "Round", "Driver", "Constructor"},
				Rows: lo.Map(c.Winners, func(w model.RaceWinner, _ int) []string {
					return []string{itoa(w.Season), itoa(w.Round), w.DriverID, w.ConstructorID}
				}),
			},
			{
				Name:   "Top drivers",
				Header: []string{"Driver", "Wins"},
				Rows: lo.Map(c.TopDrivers, func(w model.WinCount, _ int) []string {
					return []string{w.Name, itoa(w.Wins)}
				}),
			},
		},
	}
}
