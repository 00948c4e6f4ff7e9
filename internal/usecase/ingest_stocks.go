package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/services/indicators"
	"CoveredCall/pkg/config"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/util"
)

const (
	msgStocksUpdated    = "Stock data for all tickers updated and saved."
	msgStocksFailed     = "An error occurred while updating stock data: "
	msgBackfillComplete = "Historical stock data backfilled for all tickers."
	msgBackfillFailed   = "An error occurred while backfilling stock data: "
)

// StocksUseCase keeps the price history table current.
type StocksUseCase struct {
	source  domrepo.PriceSource
	history domrepo.PriceHistory
	metrics domrepo.Metrics
	cfg     config.Strategy
	l       *applogger.Logger
	now     func() time.Time
}

func NewStocksUseCase(source domrepo.PriceSource, history domrepo.PriceHistory, metrics domrepo.Metrics, cfg config.Strategy, l *applogger.Logger) *StocksUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &StocksUseCase{source: source, history: history, metrics: metrics, cfg: cfg, l: l, now: time.Now}
}

// UpdateStockData appends bars since the latest stored date. Indicators are recomputed
// over the recent stored window plus the new bars so the moving averages stay continuous.
func (uc *StocksUseCase) UpdateStockData(ctx context.Context, tickers []string) models.Status {
	if len(tickers) == 0 {
		tickers = uc.cfg.Tickers
	}
	began := time.Now()
	defer func() { uc.metrics.RecordLatency("update_stock_data", time.Since(began).Seconds()) }()

	failures := map[string]string{}
	for _, t := range tickers {
		n, err := uc.updateTicker(ctx, t)
		if err != nil {
			failures[t] = err.Error()
			uc.metrics.RecordError(errorKind(err))
			uc.l.Error("stock update failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		uc.l.Info("stock data processed", applogger.String("ticker", t), applogger.Int("rows", n))
	}
	return batchStatus(failures, msgStocksUpdated, msgStocksFailed)
}

func (uc *StocksUseCase) updateTicker(ctx context.Context, ticker string) (int, error) {
	recent, err := uc.history.ReadRecent(ctx, ticker, uc.cfg.RecentWindow)
	if err != nil {
		return 0, fmt.Errorf("read recent %s: %w", ticker, err)
	}
	models.SortRows(recent)

	start := uc.cfg.Beginning()
	latest, err := uc.history.LatestDate(ctx, ticker)
	switch {
	case err == nil:
		start = latest.AddDate(0, 0, 1)
	case !errors.Is(err, models.ErrNotFound):
		return 0, fmt.Errorf("latest date %s: %w", ticker, err)
	}
	end := util.Day(uc.now())
	if start.After(end) {
		return 0, nil
	}

	fresh, err := uc.source.FetchDailyBars(ctx, ticker, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	rows := indicators.Compute(models.MergeBars(models.Bars(recent), fresh))
	if err := uc.history.WriteUpsert(ctx, ticker, rows); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", ticker, err)
	}
	return len(rows), nil
}

// Backfill fetches history from the configured beginning date up to the day before the
// earliest stored row. A ticker with no stored rows is backfilled up to today.
func (uc *StocksUseCase) Backfill(ctx context.Context, tickers []string) models.Status {
	if len(tickers) == 0 {
		tickers = uc.cfg.Tickers
	}
	failures := map[string]string{}
	for _, t := range tickers {
		n, err := uc.backfillTicker(ctx, t)
		if err != nil {
			failures[t] = err.Error()
			uc.metrics.RecordError(errorKind(err))
			uc.l.Error("backfill failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		uc.l.Info("backfill processed", applogger.String("ticker", t), applogger.Int("rows", n))
	}
	return batchStatus(failures, msgBackfillComplete, msgBackfillFailed)
}

func (uc *StocksUseCase) backfillTicker(ctx context.Context, ticker string) (int, error) {
	end := util.Day(uc.now())
	earliest, err := uc.history.EarliestDate(ctx, ticker)
	switch {
	case err == nil:
		end = earliest.AddDate(0, 0, -1)
	case !errors.Is(err, models.ErrNotFound):
		return 0, fmt.Errorf("earliest date %s: %w", ticker, err)
	}
	start := uc.cfg.Beginning()
	if !start.Before(end) {
		return 0, nil
	}

	bars, err := uc.source.FetchDailyBars(ctx, ticker, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	rows := indicators.Compute(models.MergeBars(nil, bars))
	if len(rows) == 0 {
		return 0, nil
	}
	if err := uc.history.WriteUpsert(ctx, ticker, rows); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", ticker, err)
	}
	return len(rows), nil
}
