package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/paddock/internal/export"
	"github.com/sells-group/paddock/internal/reconcile"
	"github.com/sells-group/paddock/pkg/ergast"
)

var (
	standingsRound    int
	standingsComputed bool
)

// parseSeason accepts a year or "current".
func parseSeason(args []string) (int, error) {
	if len(args) == 0 || args[0] == "current" {
		return ergast.Current, nil
	}
	season, err := strconv.Atoi(args[0])
	if err != nil || season < 1950 {
		return 0, fmt.Errorf("invalid season %q", args[0])
	}
	return season, nil
}

// progressTracker returns a tracker that reports "done/total" on w each
// time the count moves.
func progressTracker(w io.Writer) *reconcile.Tracker {
	t := reconcile.NewTracker()
	last := -1
	t.OnChange(func(s reconcile.Snapshot) {
		if s.Total == 0 || s.Done == last {
			return
		}
		last = s.Done
		fmt.Fprintf(w, "season %d: %d/%d rounds (%s)\n", s.Season, s.Done, s.Total, s.State)
	})
	return t
}

var seasonCmd = &cobra.Command{
	Use:   "season [year|current]",
	Short: "Assemble every race result of a season",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		season, err := parseSeason(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.SeasonResults(ctx, season, progressTracker(cmd.ErrOrStderr()))
		exit, err := partial(cmd.ErrOrStderr(), res, degraded(cmd.ErrOrStderr(), err))
		if err != nil {
			return userError(err)
		}

		t := export.Table{Name: "Races", Header: []string{"Round", "Race", "Date", "Winner", "Constructor"}}
		for _, r := range res.Races {
			winner, team := "", ""
			if len(r.Results) > 0 {
				winner, team = r.Results[0].Driver.Name(), r.Results[0].Constructor.Name
			}
			t.Rows = append(t.Rows, []string{strconv.Itoa(r.Round), r.Name, r.Date, winner, team})
		}
		if err := printDocument(cmd.OutOrStdout(), export.Document{Value: res, Tables: []export.Table{t}}); err != nil {
			return err
		}
		return userError(exit)
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings [year|current]",
	Short: "Driver and constructor championship tables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		season, err := parseSeason(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if standingsComputed {
			drivers, constructors, res, err := env.Engine.ComputedStandings(ctx, season, progressTracker(cmd.ErrOrStderr()))
			exit, err := partial(cmd.ErrOrStderr(), res, degraded(cmd.ErrOrStderr(), err))
			if err != nil {
				return userError(err)
			}
			if err := printDocument(cmd.OutOrStdout(), export.ComputedStandings(res.Season, drivers, constructors)); err != nil {
				return err
			}
			return userError(exit)
		}

		st, err := env.Engine.Standings(ctx, season, standingsRound)
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "after round %d\n", st.Round)
		return printDocument(cmd.OutOrStdout(), export.Standings(st))
	},
}

func init() {
	standingsCmd.Flags().IntVar(&standingsRound, "round", 0, "standings after this round (default latest)")
	standingsCmd.Flags().BoolVar(&standingsComputed, "computed", false, "derive the tables from assembled race results")
	rootCmd.AddCommand(seasonCmd, standingsCmd)
}
