package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/paddock/internal/export"
)

var driverCmd = &cobra.Command{
	Use:   "driver <id or name>",
	Short: "Career statistics for a driver",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		d, err := env.Engine.FindDriver(ctx, strings.Join(args, " "))
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		stats, err := env.Engine.DriverCareer(ctx, d.ID)
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", d.Name(), d.Nationality)
		return printDocument(cmd.OutOrStdout(), export.Career(stats))
	},
}

var constructorCmd = &cobra.Command{
	Use:   "constructor <id or name>",
	Short: "Career statistics for a constructor",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Engine.FindConstructor(ctx, strings.Join(args, " "))
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		stats, err := env.Engine.ConstructorCareer(ctx, c.ID)
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", c.Name, c.Nationality)
		return printDocument(cmd.OutOrStdout(), export.Career(stats))
	},
}

var circuitCmd = &cobra.Command{
	Use:   "circuit <id, name or locality>",
	Short: "Winners and records at a circuit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Engine.FindCircuit(ctx, strings.Join(args, " "))
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		stats, err := env.Engine.CircuitStats(ctx, c.ID)
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s, %s: %d races (%d-%d)\n",
			stats.Name, c.Location.Country, stats.Races, stats.FirstSeason, stats.LastSeason)
		return printDocument(cmd.OutOrStdout(), export.Circuit(stats))
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <driver> <driver>",
	Short: "Head-to-head comparison of two drivers",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Engine.FindDriver(ctx, args[0])
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		b, err := env.Engine.FindDriver(ctx, args[1])
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}
		h2h, err := env.Engine.Compare(ctx, a.ID, b.ID)
		if err = degraded(cmd.ErrOrStderr(), err); err != nil {
			return userError(err)
		}

		row := func(label string, x, y any) []string {
			return []string{label, fmt.Sprint(x), fmt.Sprint(y)}
		}
		table := export.Table{
			Name:   "Head to head",
			Header: []string{"", a.Name(), b.Name()},
			Rows: [][]string{
				row("Races", h2h.A.Races, h2h.B.Races),
				row("Wins", h2h.A.Wins, h2h.B.Wins),
				row("Podiums", h2h.A.Podiums, h2h.B.Podiums),
				row("Poles", h2h.A.Poles, h2h.B.Poles),
				row("Points", h2h.A.TotalPoints, h2h.B.TotalPoints),
				row("Seasons", h2h.A.Seasons, h2h.B.Seasons),
				row("Finished ahead", h2h.AAhead, h2h.BAhead),
			},
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d shared races\n", h2h.SharedRaces)
		return printDocument(cmd.OutOrStdout(), export.Document{Value: h2h, Tables: []export.Table{table}})
	},
}

func init() {
	rootCmd.AddCommand(driverCmd, constructorCmd, circuitCmd, compareCmd)
}
