package model

import (
	"strings"
	"time"
)

// RaceKey identifies a race within the upstream calendar.
type RaceKey struct {
	Season int `json:"season"`
	Round  int `json:"round"`
}

// Less orders keys chronologically.
func (k RaceKey) Less(o RaceKey) bool {
	if k.Season != o.Season {
		return k.Season < o.Season
	}
	return k.Round < o.Round
}

// Outcome classifies a result's status descriptor.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeLapped   Outcome = "lapped"
	OutcomeRetired  Outcome = "retired"
)

// ResultEntry is one classified participant of a race.
type ResultEntry struct {
	Number       string      `json:"number,omitempty"`
	Position     Position    `json:"position"`
	PositionText string      `json:"position_text"`
	Points       Points      `json:"points"`
	Driver       Driver      `json:"driver"`
	Constructor  Constructor `json:"constructor"`
	Grid         int         `json:"grid"`
	Laps         int         `json:"laps"`
	Status       string      `json:"status"`
}

// Outcome derives finished / lapped / retired from the status text.
func (e ResultEntry) Outcome() Outcome {
	switch {
	case e.Status == "Finished":
		return OutcomeFinished
	case strings.HasPrefix(e.Status, "+") && strings.Contains(e.Status, "Lap"):
		return OutcomeLapped
	default:
		return OutcomeRetired
	}
}

// QualifyingEntry is one participant of a qualifying session.
type QualifyingEntry struct {
	Number      string      `json:"number,omitempty"`
	Position    Position    `json:"position"`
	Driver      Driver      `json:"driver"`
	Constructor Constructor `json:"constructor"`
	Q1          string      `json:"q1,omitempty"`
	Q2          string      `json:"q2,omitempty"`
	Q3          string      `json:"q3,omitempty"`
}

// PitStopEntry is a single pit stop.
type PitStopEntry struct {
	Season   int          `json:"season"`
	Round    int          `json:"round"`
	DriverID string       `json:"driver_id"`
	Lap      int          `json:"lap"`
	Stop     int          `json:"stop"`
	Time     string       `json:"time,omitempty"`
	Duration StopDuration `json:"duration"`
	Raw      string       `json:"raw_duration,omitempty"`
}

// Race is one round of a season with whatever sub-collections were requested.
type Race struct {
	Season     int               `json:"season"`
	Round      int               `json:"round"`
	Name       string            `json:"name"`
	Date       string            `json:"date,omitempty"`
	Time       string            `json:"time,omitempty"`
	Circuit    Circuit           `json:"circuit"`
	Results    []ResultEntry     `json:"results,omitempty"`
	Qualifying []QualifyingEntry `json:"qualifying,omitempty"`
	PitStops   []PitStopEntry    `json:"pit_stops,omitempty"`
}

// Key returns the (season, round) composite key.
func (r Race) Key() RaceKey {
	return RaceKey{Season: r.Season, Round: r.Round}
}

// Complete reports whether the race has any results.
func (r Race) Complete() bool {
	return len(r.Results) > 0
}

// StartDate parses the race date. ok is false when the date is absent or malformed.
func (r Race) StartDate() (time.Time, bool) {
	if r.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasRun reports whether the race date is on or before now's calendar day.
// Races without a parseable date are assumed to have run.
func (r Race) HasRun(now time.Time) bool {
	d, ok := r.StartDate()
	if !ok {
		return true
	}
	y, m, dd := now.Date()
	today := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	return !d.After(today)
}

// MergeRaces folds race fragments that share a (season, round) key into one
// record. The first fragment's metadata wins; sub-collections are appended in
// input order with repeated identical rows dropped. Output preserves first-appearance
// order of each key.
func MergeRaces(fragments []Race) []Race {
	idx := make(map[RaceKey]int, len(fragments))
	out := make([]Race, 0, len(fragments))
	for _, f := range fragments {
		i, ok := idx[f.Key()]
		if !ok {
			idx[f.Key()] = len(out)
			f.Results = appendResults(nil, f.Results)
			f.Qualifying = appendQualifying(nil, f.Qualifying)
			f.PitStops = appendPitStops(nil, f.PitStops)
			out = append(out, f)
			continue
		}
		out[i].Results = appendResults(out[i].Results, f.Results)
		out[i].Qualifying = appendQualifying(out[i].Qualifying, f.Qualifying)
		out[i].PitStops = appendPitStops(out[i].PitStops, f.PitStops)
	}
	return out
}

func appendResults(dst, src []ResultEntry) []ResultEntry {
	for _, e := range src {
		dup := false
		for _, d := range dst {
			if sameResult(d, e) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, e)
		}
	}
	return dst
}

// sameResult matches a repeated row. A driver can appear twice in one race
// with different cars, so the car number and constructor are part of it.
func sameResult(a, b ResultEntry) bool {
	return a.Driver.ID == b.Driver.ID &&
		a.Constructor.ID == b.Constructor.ID &&
		a.Number == b.Number &&
		a.PositionText == b.PositionText &&
		a.Laps == b.Laps &&
		a.Status == b.Status
}

func appendQualifying(dst, src []QualifyingEntry) []QualifyingEntry {
	for _, e := range src {
		dup := false
		for _, d := range dst {
			if d.Driver.ID == e.Driver.ID {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, e)
		}
	}
	return dst
}

func appendPitStops(dst, src []PitStopEntry) []PitStopEntry {
	for _, e := range src {
		dup := false
		for _, d := range dst {
			if d.DriverID == e.DriverID && d.Stop == e.Stop {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, e)
		}
	}
	return dst
}
