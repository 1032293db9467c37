package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/config"
)

var (
	cfg     *config.Config
	outPath string
)

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "Formula 1 statistics from the Ergast API",
	Long:  "Pages through the Ergast-compatible F1 API with throttling-aware retries, caches completed results for the session, and folds them into standings, career, circuit and pit stop statistics.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(cmd.Name()); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "also write the result to a .xlsx, .yaml or .json file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
