// Package ergast is a client for the Ergast-compatible F1 REST API served by
// Jolpica. Every list endpoint is paginated with limit/offset and reports a
// grand total in its MRData envelope.
package ergast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/paddock/internal/fetcher"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/internal/resilience"
)

// DefaultBaseURL is the public Jolpica mirror of the Ergast API.
const DefaultBaseURL = "https://api.jolpi.ca/ergast/f1"

// Current selects the in-progress season wherever a season is accepted.
const Current = 0

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithPageSize sets the limit requested per page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithPacing sets the fixed delay between consecutive page requests.
func WithPacing(d time.Duration) Option {
	return func(c *Client) {
		c.pacing = d
	}
}

// WithSleeper replaces the wall-clock pacing wait.
func WithSleeper(s resilience.Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// Client issues typed requests through a fetcher.Getter.
type Client struct {
	get      fetcher.Getter
	baseURL  string
	pageSize int
	pacing   time.Duration
	sleep    resilience.Sleeper
}

// NewClient creates a client that performs its requests with g.
func NewClient(g fetcher.Getter, opts ...Option) *Client {
	c := &Client{
		get:      g,
		baseURL:  DefaultBaseURL,
		pageSize: fetcher.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL builds the address of one page of path.
func (c *Client) URL(path string, offset, limit int) string {
	return fmt.Sprintf("%s/%s.json?limit=%d&offset=%d", c.baseURL, path, limit, offset)
}

func (c *Client) pageURL(path string) fetcher.PageURL {
	return func(offset, limit int) string {
		return c.URL(path, offset, limit)
	}
}

func (c *Client) pageConfig() fetcher.PageConfig {
	return fetcher.PageConfig{Size: c.pageSize, Pacing: c.pacing, Sleep: c.sleep}
}

func seasonSegment(season int) string {
	if season == Current {
		return "current"
	}
	return strconv.Itoa(season)
}

func scoped(season int, collection string) string {
	if season < 0 {
		return collection
	}
	return seasonSegment(season) + "/" + collection
}

// AllSeasons asks entity list endpoints for every season.
const AllSeasons = -1

// Drivers lists drivers, either every driver (AllSeasons) or those entered
// in one season.
func (c *Client) Drivers(ctx context.Context, season int) ([]model.Driver, error) {
	return fetcher.Paginate(ctx, c.get, c.pageURL(scoped(season, "drivers")), c.pageConfig(), driversPage)
}

// Constructors lists constructors for every season (AllSeasons) or one season.
func (c *Client) Constructors(ctx context.Context, season int) ([]model.Constructor, error) {
	return fetcher.Paginate(ctx, c.get, c.pageURL(scoped(season, "constructors")), c.pageConfig(), constructorsPage)
}

// Circuits lists circuits for every season (AllSeasons) or one season.
func (c *Client) Circuits(ctx context.Context, season int) ([]model.Circuit, error) {
	return fetcher.Paginate(ctx, c.get, c.pageURL(scoped(season, "circuits")), c.pageConfig(), circuitsPage)
}

// Schedule lists the rounds of a season without results.
func (c *Client) Schedule(ctx context.Context, season int) ([]model.Race, error) {
	return fetcher.Paginate(ctx, c.get, c.pageURL(seasonSegment(season)), c.pageConfig(), racesPage)
}

// SeasonResults fetches every result of a season, merging races split
// across page boundaries.
func (c *Client) SeasonResults(ctx context.Context, season int) ([]model.Race, error) {
	races, err := c.racePages(ctx, seasonSegment(season)+"/results", false)
	if err != nil {
		return nil, err
	}
	return races, nil
}

// SeasonResultsPartial is SeasonResults for best-effort callers: on failure
// it returns the merged races of the pages fetched so far with the error.
func (c *Client) SeasonResultsPartial(ctx context.Context, season int) ([]model.Race, error) {
	return c.racePages(ctx, seasonSegment(season)+"/results", true)
}

// RoundResults fetches one round's results with a single request. A race
// the upstream has not published yet comes back with no results, and so
// does a race with more rows than fit on one page; RoundResultsPaged
// fetches those.
func (c *Client) RoundResults(ctx context.Context, season, round int) (model.Race, error) {
	path := fmt.Sprintf("%s/%d/results", seasonSegment(season), round)
	body, err := c.get.Get(ctx, c.URL(path, 0, c.pageSize))
	if err != nil {
		return model.Race{}, err
	}
	page, err := racesPage(body)
	if err != nil {
		return model.Race{}, err
	}
	race := pickRound(model.MergeRaces(page.Items), season, round)
	if len(race.Results) < page.Total {
		return model.Race{Season: race.Season, Round: race.Round}, nil
	}
	return race, nil
}

// RoundResultsPaged fetches one round's results across as many pages as the
// upstream advertises.
func (c *Client) RoundResultsPaged(ctx context.Context, season, round int) (model.Race, error) {
	races, err := c.racePages(ctx, fmt.Sprintf("%s/%d/results", seasonSegment(season), round), false)
	if err != nil {
		return model.Race{}, err
	}
	return pickRound(races, season, round), nil
}

func pickRound(races []model.Race, season, round int) model.Race {
	for _, r := range races {
		if r.Round == round && (season == Current || r.Season == season) {
			return r
		}
	}
	return model.Race{Season: season, Round: round}
}

// DriverResults fetches a driver's full race history.
func (c *Client) DriverResults(ctx context.Context, driverID string) ([]model.Race, error) {
	return c.racePages(ctx, "drivers/"+driverID+"/results", false)
}

// DriverQualifying fetches a driver's full qualifying history.
func (c *Client) DriverQualifying(ctx context.Context, driverID string) ([]model.Race, error) {
	return c.racePages(ctx, "drivers/"+driverID+"/qualifying", false)
}

// ConstructorResults fetches a constructor's full race history.
func (c *Client) ConstructorResults(ctx context.Context, constructorID string) ([]model.Race, error) {
	return c.racePages(ctx, "constructors/"+constructorID+"/results", false)
}

// ConstructorQualifying fetches a constructor's full qualifying history.
func (c *Client) ConstructorQualifying(ctx context.Context, constructorID string) ([]model.Race, error) {
	return c.racePages(ctx, "constructors/"+constructorID+"/qualifying", false)
}

// CircuitWinners fetches the winning result of every race held at a circuit.
func (c *Client) CircuitWinners(ctx context.Context, circuitID string) ([]model.Race, error) {
	return c.racePages(ctx, "circuits/"+circuitID+"/results/1", false)
}

// PitStops fetches every pit stop of one round.
func (c *Client) PitStops(ctx context.Context, season, round int) ([]model.PitStopEntry, error) {
	races, err := c.racePages(ctx, fmt.Sprintf("%s/%d/pitstops", seasonSegment(season), round), false)
	if err != nil {
		return nil, err
	}
	return pickRound(races, season, round).PitStops, nil
}

// DriverStandings fetches the driver championship after round (0 for the
// latest round) and reports the round the table belongs to.
func (c *Client) DriverStandings(ctx context.Context, season, round int) ([]model.DriverStanding, int, error) {
	var at int
	decode := func(body []byte) (fetcher.Page[model.DriverStanding], error) {
		md, total, err := decodeEnvelope(body)
		if err != nil {
			return fetcher.Page[model.DriverStanding]{}, err
		}
		var items []model.DriverStanding
		if md.StandingsTable != nil {
			for _, l := range md.StandingsTable.StandingsLists {
				at = num(l.Round)
				for _, s := range l.DriverStandings {
					items = append(items, s.model())
				}
			}
		}
		return fetcher.Page[model.DriverStanding]{Items: items, Total: total}, nil
	}
	rows, err := fetcher.Paginate(ctx, c.get, c.pageURL(standingsPath(season, round, "driverStandings")), c.pageConfig(), decode)
	if err != nil {
		return nil, 0, err
	}
	return rows, at, nil
}

// ConstructorStandings fetches the constructor championship after round (0
// for the latest round) and reports the round the table belongs to.
func (c *Client) ConstructorStandings(ctx context.Context, season, round int) ([]model.ConstructorStanding, int, error) {
	var at int
	decode := func(body []byte) (fetcher.Page[model.ConstructorStanding], error) {
		md, total, err := decodeEnvelope(body)
		if err != nil {
			return fetcher.Page[model.ConstructorStanding]{}, err
		}
		var items []model.ConstructorStanding
		if md.StandingsTable != nil {
			for _, l := range md.StandingsTable.StandingsLists {
				at = num(l.Round)
				for _, s := range l.ConstructorStandings {
					items = append(items, s.model())
				}
			}
		}
		return fetcher.Page[model.ConstructorStanding]{Items: items, Total: total}, nil
	}
	rows, err := fetcher.Paginate(ctx, c.get, c.pageURL(standingsPath(season, round, "constructorStandings")), c.pageConfig(), decode)
	if err != nil {
		return nil, 0, err
	}
	return rows, at, nil
}

func standingsPath(season, round int, table string) string {
	if round > 0 {
		return fmt.Sprintf("%s/%d/%s", seasonSegment(season), round, table)
	}
	return seasonSegment(season) + "/" + table
}

func (c *Client) racePages(ctx context.Context, path string, partial bool) ([]model.Race, error) {
	if partial {
		frags, err := fetcher.PaginatePartial(ctx, c.get, c.pageURL(path), c.pageConfig(), racesPage)
		return model.MergeRaces(frags), err
	}
	frags, err := fetcher.Paginate(ctx, c.get, c.pageURL(path), c.pageConfig(), racesPage)
	if err != nil {
		return nil, err
	}
	return model.MergeRaces(frags), nil
}

func racesPage(body []byte) (fetcher.Page[model.Race], error) {
	md, total, err := decodeEnvelope(body)
	if err != nil {
		return fetcher.Page[model.Race]{}, err
	}
	page := fetcher.Page[model.Race]{Total: total}
	if md.RaceTable == nil {
		return page, nil
	}
	for _, w := range md.RaceTable.Races {
		r, err := w.model()
		if err != nil {
			return fetcher.Page[model.Race]{}, eris.Wrap(err, "ergast: decode race")
		}
		page.Items = append(page.Items, r)
	}
	return page, nil
}

func driversPage(body []byte) (fetcher.Page[model.Driver], error) {
	md, total, err := decodeEnvelope(body)
	if err != nil {
		return fetcher.Page[model.Driver]{}, err
	}
	page := fetcher.Page[model.Driver]{Total: total}
	if md.DriverTable != nil {
		for _, d := range md.DriverTable.Drivers {
			page.Items = append(page.Items, d.model())
		}
	}
	return page, nil
}

func constructorsPage(body []byte) (fetcher.Page[model.Constructor], error) {
	md, total, err := decodeEnvelope(body)
	if err != nil {
		return fetcher.Page[model.Constructor]{}, err
	}
	page := fetcher.Page[model.Constructor]{Total: total}
	if md.ConstructorTable != nil {
		for _, c := range md.ConstructorTable.Constructors {
			page.Items = append(page.Items, c.model())
		}
	}
	return page, nil
}

func circuitsPage(body []byte) (fetcher.Page[model.Circuit], error) {
	md, total, err := decodeEnvelope(body)
	if err != nil {
		return fetcher.Page[model.Circuit]{}, err
	}
	page := fetcher.Page[model.Circuit]{Total: total}
	if md.CircuitTable != nil {
		for _, c := range md.CircuitTable.Circuits {
			page.Items = append(page.Items, c.model())
		}
	}
	return page, nil
}
