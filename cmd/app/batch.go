package main

import (
	"context"

	"CoveredCall/internal/di"
	"CoveredCall/internal/domain/models"

	"github.com/spf13/cobra"
)

var (
	tickersFlag  []string
	featuresFlag []string
)

// batchCommand runs a multi-ticker operation once and prints its status.
func batchCommand(use, short string, run func(ctx context.Context, c *di.Container, tickers []string) models.Status) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := container()
			if err != nil {
				return err
			}
			defer cleanup()
			return printStatus(cmd, run(cmd.Context(), c, tickersFlag))
		},
	}
	cmd.Flags().StringSliceVar(&tickersFlag, "tickers", nil, "tickers to process (default: configured list)")
	return cmd
}

var updateModelsCMD = func() *cobra.Command {
	cmd := batchCommand("update-models", "Train and prune a model per ticker",
		func(ctx context.Context, c *di.Container, tickers []string) models.Status {
			return c.Models.UpdateModels(ctx, tickers, featuresFlag)
		})
	cmd.Flags().StringSliceVar(&featuresFlag, "features", nil, "candidate features (default: configured list)")
	return cmd
}()

var updateStocksCMD = batchCommand("update-stocks", "Fetch daily bars since the latest stored date",
	func(ctx context.Context, c *di.Container, tickers []string) models.Status {
		return c.Stocks.UpdateStockData(ctx, tickers)
	})

var backfillCMD = batchCommand("backfill", "Fetch daily bars before the earliest stored date",
	func(ctx context.Context, c *di.Container, tickers []string) models.Status {
		return c.Stocks.Backfill(ctx, tickers)
	})

var updateOptionsCMD = batchCommand("update-options", "Fetch same-day-expiry option bars around each open",
	func(ctx context.Context, c *di.Container, tickers []string) models.Status {
		return c.Options.UpdateOptionsData(ctx, tickers)
	})

var updateDeviationsCMD = batchCommand("update-deviations", "Recompute the average daily deviation per ticker",
	func(ctx context.Context, c *di.Container, tickers []string) models.Status {
		return c.Deviations.UpdateDeviations(ctx, tickers)
	})
