package main

import (
	"encoding/json"
	"fmt"
	"os"

	"CoveredCall/internal/di"
	"CoveredCall/internal/domain/models"
	"CoveredCall/pkg/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCMD = &cobra.Command{
	Use:   "coveredcall",
	Short: "Covered call strike selection and backtesting",
	Long: `Trains per-ticker direction models on daily bars, recommends 0DTE option strikes
and replays the strategy against stored option prices.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCMD.AddCommand(
		serveCMD,
		updateModelsCMD,
		updateStocksCMD,
		backfillCMD,
		updateOptionsCMD,
		updateDeviationsCMD,
		backtestCMD,
		predictCMD,
		jobsCMD,
	)
}

// container loads the configuration and wires every dependency.
func container() (*di.Container, func(), error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	c, cleanup, err := di.InitializeContainer(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return c, cleanup, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printStatus writes the batch status and turns a failed batch into a non-zero exit.
func printStatus(cmd *cobra.Command, st models.Status) error {
	if err := printJSON(cmd, st); err != nil {
		return err
	}
	if !st.Success {
		return fmt.Errorf("%s", st.Message)
	}
	return nil
}
