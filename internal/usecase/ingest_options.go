package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/services/strategy"
	"CoveredCall/pkg/config"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/util"
)

const (
	msgOptionsUpdated = "Options data for all tickers updated and saved."
	msgOptionsFailed  = "An error occurred while updating options data: "
)

// OptionsUseCase stores same-day-expiry option bars around each day's open.
type OptionsUseCase struct {
	source  domrepo.OptionSource
	history domrepo.PriceHistory
	quotes  domrepo.OptionQuoteStore
	metrics domrepo.Metrics
	cfg     config.Strategy
	l       *applogger.Logger
}

func NewOptionsUseCase(source domrepo.OptionSource, history domrepo.PriceHistory, quotes domrepo.OptionQuoteStore, metrics domrepo.Metrics, cfg config.Strategy, l *applogger.Logger) *OptionsUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &OptionsUseCase{source: source, history: history, quotes: quotes, metrics: metrics, cfg: cfg, l: l}
}

func (uc *OptionsUseCase) UpdateOptionsData(ctx context.Context, tickers []string) models.Status {
	if len(tickers) == 0 {
		tickers = uc.cfg.OptionsTickers
	}
	began := time.Now()
	defer func() { uc.metrics.RecordLatency("update_options_data", time.Since(began).Seconds()) }()

	failures := map[string]string{}
	for _, t := range tickers {
		n, err := uc.updateTicker(ctx, t)
		if err != nil {
			failures[t] = err.Error()
			uc.metrics.RecordError(errorKind(err))
			uc.l.Error("options update failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		uc.l.Info("options data processed", applogger.String("ticker", t), applogger.Int("bars", n))
	}
	return batchStatus(failures, msgOptionsUpdated, msgOptionsFailed)
}

// dateRange runs from the day after the latest stored option date through the latest stock date.
func (uc *OptionsUseCase) dateRange(ctx context.Context, ticker string) ([]time.Time, error) {
	lastStock, err := uc.history.LatestDate(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("latest stock date %s: %w", ticker, err)
	}
	start := uc.cfg.Beginning()
	lastOption, err := uc.quotes.LatestDate(ctx, ticker)
	switch {
	case err == nil:
		start = lastOption.AddDate(0, 0, 1)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("latest option date %s: %w", ticker, err)
	}
	if start.After(lastStock) {
		return nil, nil
	}
	return util.Days(start, lastStock), nil
}

func (uc *OptionsUseCase) updateTicker(ctx context.Context, ticker string) (int, error) {
	days, err := uc.dateRange(ctx, ticker)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, d := range days {
		open, err := uc.history.OpenPrice(ctx, ticker, d)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return total, fmt.Errorf("open price %s %s: %w", ticker, util.FormatDate(d), err)
		}
		center := math.RoundToEven(open)

		var bars []models.OptionBar
		for _, c := range strategy.OptionChain(ticker, d, center, uc.cfg.ChainWidth, uc.cfg.ChainStep) {
			bar, ok, err := uc.source.FetchOptionBar(ctx, c, d)
			if err != nil {
				return total, fmt.Errorf("option %s: %w", c.Symbol, err)
			}
			if ok {
				bars = append(bars, bar)
			}
		}
		if len(bars) == 0 {
			uc.l.Debug("no options data", applogger.String("ticker", ticker), applogger.Date("date", d))
			continue
		}
		if err := uc.quotes.SaveBars(ctx, bars); err != nil {
			return total, fmt.Errorf("save options %s %s: %w", ticker, util.FormatDate(d), err)
		}
		total += len(bars)
	}
	return total, nil
}
