package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/paddock/internal/export"
)

var (
	pitFrom int
	pitTo   int
)

var pitstopsCmd = &cobra.Command{
	Use:   "pitstops",
	Short: "Fastest and slowest pit stops and the per-driver ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		to := pitTo
		if to == 0 {
			to = time.Now().Year()
		}
		from := pitFrom
		if from == 0 {
			from = to
		}
		if from > to {
			return fmt.Errorf("--from %d is after --to %d", from, to)
		}

		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Engine.PitStopSummary(ctx, from, to)
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d stops over %d-%d", summary.Stops, from, to)
		if summary.Dropped > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d without a usable duration)", summary.Dropped)
		}
		if n := len(summary.Pending); n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "; %d rounds still awaiting pit stop data", n)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return printDocument(cmd.OutOrStdout(), export.PitStops(summary))
	},
}

func init() {
	pitstopsCmd.Flags().IntVar(&pitFrom, "from", 0, "first season (default --to)")
	pitstopsCmd.Flags().IntVar(&pitTo, "to", 0, "last season (default this year)")
	rootCmd.AddCommand(pitstopsCmd)
}
