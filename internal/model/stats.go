package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeasonPoints is the points total for one season.
type SeasonPoints struct {
	Season int             `json:"season"`
	Points decimal.Decimal `json:"points"`
}

// BreakdownRow summarizes a career split by a partner entity: constructors
// for a driver, drivers for a constructor. FirstSeason/FirstRound record the
// earliest appearance and define the row order.
type BreakdownRow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Races       int             `json:"races"`
	Wins        int             `json:"wins"`
	Points      decimal.Decimal `json:"points"`
	FirstSeason int             `json:"first_season"`
	FirstRound  int             `json:"first_round"`
}

// CareerStats is the derived per-driver or per-constructor projection. It is
// always rebuilt from a fresh fold over raw results.
type CareerStats struct {
	Subject        EntityKind      `json:"subject"`
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Races          int             `json:"races"`
	Wins           int             `json:"wins"`
	Podiums        int             `json:"podiums"`
	Poles          int             `json:"poles"`
	Seasons        int             `json:"seasons"`
	TotalPoints    decimal.Decimal `json:"total_points"`
	AvgFinish      *float64        `json:"avg_finish,omitempty"`
	AvgQualifying  *float64        `json:"avg_qualifying,omitempty"`
	Classified     int             `json:"classified"`
	Qualified      int             `json:"qualified"`
	PointsBySeason []SeasonPoints  `json:"points_by_season"`
	Breakdown      []BreakdownRow  `json:"breakdown"`
	Unparsed       int             `json:"unparsed_points,omitempty"`
}

// PointsFor returns the points scored in season, zero when absent.
func (c CareerStats) PointsFor(season int) decimal.Decimal {
	for _, sp := range c.PointsBySeason {
		if sp.Season == season {
			return sp.Points
		}
	}
	return decimal.Zero
}

// WinCount ranks an entity by wins.
type WinCount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// RaceWinner is the winner of one race at a circuit.
type RaceWinner struct {
	Season        int    `json:"season"`
	Round         int    `json:"round"`
	DriverID      string `json:"driver_id"`
	ConstructorID string `json:"constructor_id"`
}

// CircuitStats rolls up every race held at a circuit.
type CircuitStats struct {
	CircuitID       string       `json:"circuit_id"`
	Name            string       `json:"name"`
	Races           int          `json:"races"`
	FirstSeason     int          `json:"first_season"`
	LastSeason      int          `json:"last_season"`
	Winners         []RaceWinner `json:"winners"`
	TopDrivers      []WinCount   `json:"top_drivers"`
	TopConstructors []WinCount   `json:"top_constructors"`
}

// DriverPitStops is one row of the pit stop ranking.
type DriverPitStops struct {
	DriverID string        `json:"driver_id"`
	Stops    int           `json:"stops"`
	Total    time.Duration `json:"total"`
	Average  time.Duration `json:"average"`
}

// PitStopSummary holds pit stop extremes and the per-driver ranking.
type PitStopSummary struct {
	FromSeason int              `json:"from_season"`
	ToSeason   int              `json:"to_season"`
	Stops      int              `json:"stops"`
	Dropped    int              `json:"dropped"`
	Fastest    *PitStopEntry    `json:"fastest,omitempty"`
	Slowest    *PitStopEntry    `json:"slowest,omitempty"`
	Rankings   []DriverPitStops `json:"rankings"`
	// Pending lists rounds that have run but have no stops published yet
	// in a season that otherwise has pit stop data.
	Pending []RaceKey `json:"pending,omitempty"`
}

// StandingRow is one line of a championship table.
type StandingRow struct {
	Position int             `json:"position"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Points   decimal.Decimal `json:"points"`
	Wins     int             `json:"wins"`
	Races    int             `json:"races"`
}

// DriverStanding is an upstream driver championship entry.
type DriverStanding struct {
	Position     Position      `json:"position"`
	PositionText string        `json:"position_text"`
	Points       Points        `json:"points"`
	Wins         int           `json:"wins"`
	Driver       Driver        `json:"driver"`
	Constructors []Constructor `json:"constructors"`
}

// ConstructorStanding is an upstream constructor championship entry.
type ConstructorStanding struct {
	Position     Position    `json:"position"`
	PositionText string      `json:"position_text"`
	Points       Points      `json:"points"`
	Wins         int         `json:"wins"`
	Constructor  Constructor `json:"constructor"`
}

// SeasonStandings bundles both championships after a given round.
type SeasonStandings struct {
	Season       int                   `json:"season"`
	Round        int                   `json:"round"`
	Drivers      []DriverStanding      `json:"drivers"`
	Constructors []ConstructorStanding `json:"constructors"`
}

// HeadToHead compares two drivers over the races they both started.
type HeadToHead struct {
	A           CareerStats `json:"a"`
	B           CareerStats `json:"b"`
	SharedRaces int         `json:"shared_races"`
	AAhead      int         `json:"a_ahead"`
	BAhead      int         `json:"b_ahead"`
}
