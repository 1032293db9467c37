package ergast

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/sells-group/paddock/internal/model"
)

// Envelope is the MRData wrapper around every upstream response. Numbers
// arrive as strings.
type Envelope struct {
	MRData MRData `json:"MRData"`
}

// MRData carries the pagination counters and whichever table the endpoint
// returns.
type MRData struct {
	Limit  string `json:"limit"`
	Offset string `json:"offset"`
	Total  string `json:"total"`

	DriverTable      *driverTable      `json:"DriverTable,omitempty"`
	ConstructorTable *constructorTable `json:"ConstructorTable,omitempty"`
	CircuitTable     *circuitTable     `json:"CircuitTable,omitempty"`
	RaceTable        *raceTable        `json:"RaceTable,omitempty"`
	StandingsTable   *standingsTable   `json:"StandingsTable,omitempty"`
}

type driverTable struct {
	Drivers []wireDriver `json:"Drivers"`
}

type constructorTable struct {
	Constructors []wireConstructor `json:"Constructors"`
}

type circuitTable struct {
	Circuits []wireCircuit `json:"Circuits"`
}

type raceTable struct {
	Races []wireRace `json:"Races"`
}

type standingsTable struct {
	Season         string             `json:"season"`
	Round          string             `json:"round"`
	StandingsLists []wireStandingList `json:"StandingsLists"`
}

type wireDriver struct {
	DriverID        string `json:"driverId"`
	PermanentNumber string `json:"permanentNumber"`
	Code            string `json:"code"`
	URL             string `json:"url"`
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
	DateOfBirth     string `json:"dateOfBirth"`
	Nationality     string `json:"nationality"`
}

type wireConstructor struct {
	ConstructorID string `json:"constructorId"`
	URL           string `json:"url"`
	Name          string `json:"name"`
	Nationality   string `json:"nationality"`
}

type wireLocation struct {
	Lat      string `json:"lat"`
	Long     string `json:"long"`
	Locality string `json:"locality"`
	Country  string `json:"country"`
}

type wireCircuit struct {
	CircuitID   string       `json:"circuitId"`
	URL         string       `json:"url"`
	CircuitName string       `json:"circuitName"`
	Location    wireLocation `json:"Location"`
}

type wireResult struct {
	Number       string          `json:"number"`
	Position     string          `json:"position"`
	PositionText string          `json:"positionText"`
	Points       string          `json:"points"`
	Driver       wireDriver      `json:"Driver"`
	Constructor  wireConstructor `json:"Constructor"`
	Grid         string          `json:"grid"`
	Laps         string          `json:"laps"`
	Status       string          `json:"status"`
}

type wireQualifying struct {
	Number      string          `json:"number"`
	Position    string          `json:"position"`
	Driver      wireDriver      `json:"Driver"`
	Constructor wireConstructor `json:"Constructor"`
	Q1          string          `json:"Q1"`
	Q2          string          `json:"Q2"`
	Q3          string          `json:"Q3"`
}

type wirePitStop struct {
	DriverID string `json:"driverId"`
	Lap      string `json:"lap"`
	Stop     string `json:"stop"`
	Time     string `json:"time"`
	Duration string `json:"duration"`
}

type wireRace struct {
	Season            string           `json:"season"`
	Round             string           `json:"round"`
	URL               string           `json:"url"`
	RaceName          string           `json:"raceName"`
	Circuit           wireCircuit      `json:"Circuit"`
	Date              string           `json:"date"`
	Time              string           `json:"time"`
	Results           []wireResult     `json:"Results"`
	QualifyingResults []wireQualifying `json:"QualifyingResults"`
	PitStops          []wirePitStop    `json:"PitStops"`
}

type wireDriverStanding struct {
	Position     string            `json:"position"`
	PositionText string            `json:"positionText"`
	Points       string            `json:"points"`
	Wins         string            `json:"wins"`
	Driver       wireDriver        `json:"Driver"`
	Constructors []wireConstructor `json:"Constructors"`
}

type wireConstructorStanding struct {
	Position     string          `json:"position"`
	PositionText string          `json:"positionText"`
	Points       string          `json:"points"`
	Wins         string          `json:"wins"`
	Constructor  wireConstructor `json:"Constructor"`
}

type wireStandingList struct {
	Season               string                    `json:"season"`
	Round                string                    `json:"round"`
	DriverStandings      []wireDriverStanding      `json:"DriverStandings"`
	ConstructorStandings []wireConstructorStanding `json:"ConstructorStandings"`
}

// decodeEnvelope parses body and returns MRData with its advertised total.
func decodeEnvelope(body []byte) (MRData, int, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return MRData{}, 0, eris.Wrap(err, "ergast: decode envelope")
	}
	total, err := strconv.Atoi(strings.TrimSpace(env.MRData.Total))
	if err != nil {
		return MRData{}, 0, eris.Errorf("ergast: envelope total %q is not a number", env.MRData.Total)
	}
	return env.MRData, total, nil
}

// num parses optional numeric fields; anything unparseable reads as zero.
func num(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func coord(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func (w wireDriver) model() model.Driver {
	return model.Driver{
		ID:          w.DriverID,
		Code:        w.Code,
		Number:      w.PermanentNumber,
		GivenName:   w.GivenName,
		FamilyName:  w.FamilyName,
		DateOfBirth: w.DateOfBirth,
		Nationality: w.Nationality,
		URL:         w.URL,
	}
}

func (w wireConstructor) model() model.Constructor {
	return model.Constructor{
		ID:          w.ConstructorID,
		Name:        w.Name,
		Nationality: w.Nationality,
		URL:         w.URL,
	}
}

func (w wireCircuit) model() model.Circuit {
	return model.Circuit{
		ID:   w.CircuitID,
		Name: w.CircuitName,
		Location: model.Location{
			Locality: w.Location.Locality,
			Country:  w.Location.Country,
			Lat:      coord(w.Location.Lat),
			Long:     coord(w.Location.Long),
		},
		URL: w.URL,
	}
}

// position prefers the classification text and falls back to the numeric
// field, so "R" on a retired entry stays unparseable.
func position(text, pos string) model.Position {
	if text != "" {
		return model.ParsePosition(text)
	}
	return model.ParsePosition(pos)
}

func (w wireRace) model() (model.Race, error) {
	season, err := strconv.Atoi(strings.TrimSpace(w.Season))
	if err != nil {
		return model.Race{}, eris.Errorf("ergast: race season %q is not a number", w.Season)
	}
	round, err := strconv.Atoi(strings.TrimSpace(w.Round))
	if err != nil {
		return model.Race{}, eris.Errorf("ergast: race round %q is not a number", w.Round)
	}

	r := model.Race{
		Season:  season,
		Round:   round,
		Name:    w.RaceName,
		Date:    w.Date,
		Time:    w.Time,
		Circuit: w.Circuit.model(),
	}
	for _, res := range w.Results {
		r.Results = append(r.Results, model.ResultEntry{
			Number:       res.Number,
			Position:     position(res.PositionText, res.Position),
			PositionText: res.PositionText,
			Points:       model.ParsePoints(res.Points),
			Driver:       res.Driver.model(),
			Constructor:  res.Constructor.model(),
			Grid:         num(res.Grid),
			Laps:         num(res.Laps),
			Status:       res.Status,
		})
	}
	for _, q := range w.QualifyingResults {
		r.Qualifying = append(r.Qualifying, model.QualifyingEntry{
			Number:      q.Number,
			Position:    model.ParsePosition(q.Position),
			Driver:      q.Driver.model(),
			Constructor: q.Constructor.model(),
			Q1:          q.Q1,
			Q2:          q.Q2,
			Q3:          q.Q3,
		})
	}
	for _, p := range w.PitStops {
		r.PitStops = append(r.PitStops, model.PitStopEntry{
			Season:   season,
			Round:    round,
			DriverID: p.DriverID,
			Lap:      num(p.Lap),
			Stop:     num(p.Stop),
			Time:     p.Time,
			Duration: model.ParseStopDuration(p.Duration),
			Raw:      p.Duration,
		})
	}
	return r, nil
}

func (w wireDriverStanding) model() model.DriverStanding {
	ds := model.DriverStanding{
		Position:     position(w.PositionText, w.Position),
		PositionText: w.PositionText,
		Points:       model.ParsePoints(w.Points),
		Wins:         num(w.Wins),
		Driver:       w.Driver.model(),
	}
	for _, c := range w.Constructors {
		ds.Constructors = append(ds.Constructors, c.model())
	}
	return ds
}

func (w wireConstructorStanding) model() model.ConstructorStanding {
	return model.ConstructorStanding{
		Position:     position(w.PositionText, w.Position),
		PositionText: w.PositionText,
		Points:       model.ParsePoints(w.Points),
		Wins:         num(w.Wins),
		Constructor:  w.Constructor.model(),
	}
}
