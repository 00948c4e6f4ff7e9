package main

import (
	"fmt"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/usecase"
	"CoveredCall/pkg/util"

	"github.com/spf13/cobra"
)

var backtestFlags struct {
	ticker     string
	start, end string
	base       float64
	optionType string
	stopLoss   float64
	withTrades bool
}

var backtestCMD = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strike policy over stored option bars",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := backtestFlags
		start, err := util.ParseDate(f.start)
		if err != nil {
			return err
		}
		end, err := util.ParseDate(f.end)
		if err != nil {
			return err
		}
		c, cleanup, err := container()
		if err != nil {
			return err
		}
		defer cleanup()

		sum, err := c.Backtest.RunBacktest(cmd.Context(), usecase.BacktestParams{
			Ticker:        f.ticker,
			Start:         start,
			End:           end,
			BaseDeviation: f.base,
			OptionType:    models.OptionType(f.optionType),
			StopLoss:      f.stopLoss,
			WithTrades:    f.withTrades,
		})
		if err != nil {
			return err
		}
		if sum == nil {
			return fmt.Errorf("no data to backtest %s: %w", f.ticker, models.ErrDataUnavailable)
		}
		return printJSON(cmd, sum)
	},
}

var predictFlags struct {
	ticker     string
	optionType string
	base       float64
	daily      bool
}

var predictCMD = &cobra.Command{
	Use:   "predict",
	Short: "Recommend a strike for the next trading day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := predictFlags
		if !f.daily && f.ticker == "" {
			return fmt.Errorf("--ticker or --daily is required")
		}
		c, cleanup, err := container()
		if err != nil {
			return err
		}
		defer cleanup()

		if f.daily {
			res, err := c.Predict.PredictDaily(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}
		res, err := c.Predict.PredictOption(cmd.Context(), usecase.PredictParams{
			Ticker:        f.ticker,
			OptionType:    models.OptionType(f.optionType),
			BaseDeviation: f.base,
		})
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("no model or features for %s: %w", f.ticker, models.ErrDataUnavailable)
		}
		return printJSON(cmd, res)
	},
}

var jobsDeadLetters int64

var jobsCMD = &cobra.Command{
	Use:   "jobs",
	Short: "Show the job queue backlog and recent dead letters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, cleanup, err := container()
		if err != nil {
			return err
		}
		defer cleanup()
		if c.Queue == nil {
			return fmt.Errorf("job queue is disabled (queue.enabled and redis.enabled)")
		}
		stats, err := c.Queue.Stats(cmd.Context())
		if err != nil {
			return err
		}
		dead, err := c.Queue.DeadLetters(cmd.Context(), jobsDeadLetters)
		if err != nil {
			return err
		}
		return printJSON(cmd, models.JobsReport{Stats: stats, DeadLetters: dead})
	},
}

func init() {
	jobsCMD.Flags().Int64Var(&jobsDeadLetters, "dead-letters", 20, "number of dead letters to show")

	bf := backtestCMD.Flags()
	bf.StringVar(&backtestFlags.ticker, "ticker", "", "ticker symbol")
	bf.StringVar(&backtestFlags.start, "start", "", "first day, YYYY-MM-DD")
	bf.StringVar(&backtestFlags.end, "end", "", "last day, YYYY-MM-DD")
	bf.Float64Var(&backtestFlags.base, "base-deviation", 0, "base deviation; 0 uses the stored average")
	bf.StringVar(&backtestFlags.optionType, "option-type", "call", "call or put")
	bf.Float64Var(&backtestFlags.stopLoss, "stop-loss", 0, "stop loss in cents; 0 uses the configured value")
	bf.BoolVar(&backtestFlags.withTrades, "with-trades", false, "include individual trades")
	_ = backtestCMD.MarkFlagRequired("ticker")
	_ = backtestCMD.MarkFlagRequired("start")
	_ = backtestCMD.MarkFlagRequired("end")

	pf := predictCMD.Flags()
	pf.StringVar(&predictFlags.ticker, "ticker", "", "ticker symbol")
	pf.StringVar(&predictFlags.optionType, "option-type", "call", "call or put")
	pf.Float64Var(&predictFlags.base, "base-deviation", 0, "base deviation; 0 uses the stored average")
	pf.BoolVar(&predictFlags.daily, "daily", false, "predict both sides for every options ticker")
}
