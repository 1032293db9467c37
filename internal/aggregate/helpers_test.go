package aggregate

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/sells-group/paddock/internal/model"
)

var decimalEqual = cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })

func pts(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(driver, team, pos, points string) model.ResultEntry {
	return model.ResultEntry{
		Position:     model.ParsePosition(pos),
		PositionText: pos,
		Points:       model.ParsePoints(points),
		Driver:       model.Driver{ID: driver, FamilyName: driver},
		Constructor:  model.Constructor{ID: team, Name: team},
	}
}

func raceOf(season, round int, results ...model.ResultEntry) model.Race {
	return model.Race{
		Season:  season,
		Round:   round,
		Circuit: model.Circuit{ID: "monza", Name: "Monza"},
		Results: results,
	}
}

func stop(driver string, season, round, n int, dur string) model.PitStopEntry {
	return model.PitStopEntry{
		Season:   season,
		Round:    round,
		DriverID: driver,
		Stop:     n,
		Duration: model.ParseStopDuration(dur),
		Raw:      dur,
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
