package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/paddock/internal/export"
	"github.com/sells-group/paddock/internal/model"
	"github.com/sells-group/paddock/pkg/ergast"
)

var listSeason int

// listCommand builds one of the entity listing commands. All three share
// the --season flag.
func listCommand(use, short string, list func(ctx context.Context, env *appEnv, season int) (export.Table, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := initEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer env.Close()

			table, err := list(cmd.Context(), env, listSeason)
			if err = degraded(cmd.ErrOrStderr(), err); err != nil {
				return userError(err)
			}
			return printDocument(cmd.OutOrStdout(), export.Document{Value: table.Rows, Tables: []export.Table{table}})
		},
	}
}

func driverTable(drivers []model.Driver) export.Table {
	t := export.Table{Name: "Drivers", Header: []string{"ID", "Code", "Name", "Nationality", "Born"}}
	for _, d := range drivers {
		t.Rows = append(t.Rows, []string{d.ID, d.Code, d.Name(), d.Nationality, d.DateOfBirth})
	}
	return t
}

func constructorTable(constructors []model.Constructor) export.Table {
	t := export.Table{Name: "Constructors", Header: []string{"ID", "Name", "Nationality"}}
	for _, c := range constructors {
		t.Rows = append(t.Rows, []string{c.ID, c.Name, c.Nationality})
	}
	return t
}

func circuitTable(circuits []model.Circuit) export.Table {
	t := export.Table{Name: "Circuits", Header: []string{"ID", "Name", "Locality", "Country"}}
	for _, c := range circuits {
		t.Rows = append(t.Rows, []string{c.ID, c.Name, c.Location.Locality, c.Location.Country})
	}
	return t
}

var driversCmd = listCommand("drivers", "List drivers", func(ctx context.Context, env *appEnv, season int) (export.Table, error) {
	drivers, err := env.Engine.Drivers(ctx, season)
	return driverTable(drivers), err
})

var constructorsCmd = listCommand("constructors", "List constructors", func(ctx context.Context, env *appEnv, season int) (export.Table, error) {
	constructors, err := env.Engine.Constructors(ctx, season)
	return constructorTable(constructors), err
})

var circuitsCmd = listCommand("circuits", "List circuits", func(ctx context.Context, env *appEnv, season int) (export.Table, error) {
	circuits, err := env.Engine.Circuits(ctx, season)
	return circuitTable(circuits), err
})

func init() {
	for _, c := range []*cobra.Command{driversCmd, constructorsCmd, circuitsCmd} {
		c.Flags().IntVar(&listSeason, "season", ergast.AllSeasons,
			fmt.Sprintf("season year, %d for the current season, %d for all seasons", ergast.Current, ergast.AllSeasons))
		rootCmd.AddCommand(c)
	}
}
