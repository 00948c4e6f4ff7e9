package usecase

import (
	"context"
	"fmt"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/services/features"
	"CoveredCall/pkg/config"
	applogger "CoveredCall/pkg/logger"
)

const (
	msgDeviationsUpdated = "Average deviations for all tickers updated and saved."
	msgDeviationsFailed  = "An error occurred while updating deviations: "
)

// DeviationsUseCase refreshes the stored average daily move per ticker.
type DeviationsUseCase struct {
	history    domrepo.PriceHistory
	deviations domrepo.DeviationStore
	metrics    domrepo.Metrics
	cfg        config.Strategy
	l          *applogger.Logger
	now        func() time.Time
}

func NewDeviationsUseCase(history domrepo.PriceHistory, deviations domrepo.DeviationStore, metrics domrepo.Metrics, cfg config.Strategy, l *applogger.Logger) *DeviationsUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &DeviationsUseCase{history: history, deviations: deviations, metrics: metrics, cfg: cfg, l: l, now: time.Now}
}

func (uc *DeviationsUseCase) UpdateDeviations(ctx context.Context, tickers []string) models.Status {
	if len(tickers) == 0 {
		tickers = uc.cfg.Tickers
	}
	failures := map[string]string{}
	for _, t := range tickers {
		dev, err := uc.updateTicker(ctx, t)
		if err != nil {
			failures[t] = err.Error()
			uc.metrics.RecordError(errorKind(err))
			uc.l.Error("deviation update failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		uc.l.Info("deviation updated", applogger.String("ticker", t), applogger.Int("deviation", dev))
	}
	return batchStatus(failures, msgDeviationsUpdated, msgDeviationsFailed)
}

func (uc *DeviationsUseCase) updateTicker(ctx context.Context, ticker string) (int, error) {
	now := uc.now().UTC()
	rows, err := uc.history.ReadRange(ctx, ticker, uc.cfg.Beginning(), now)
	if err != nil {
		return 0, fmt.Errorf("read history %s: %w", ticker, err)
	}
	dev, ok := features.AverageDeviation(models.Bars(rows), float64(uc.cfg.DeviationBuffer))
	if !ok {
		return 0, fmt.Errorf("fewer than two bars for %s: %w", ticker, models.ErrDataUnavailable)
	}
	if err := uc.deviations.Upsert(ctx, models.TickerDeviation{Ticker: ticker, Deviation: dev, UpdatedAt: now}); err != nil {
		return 0, fmt.Errorf("save deviation %s: %w", ticker, err)
	}
	return dev, nil
}

// resolveBaseDeviation keeps an explicit base, else falls back to the stored
// per-ticker deviation, else to the configured default.
func resolveBaseDeviation(ctx context.Context, store domrepo.DeviationStore, cfg config.Strategy, ticker string, requested float64, l *applogger.Logger) float64 {
	if requested > 0 {
		return requested
	}
	if store != nil {
		d, err := store.Get(ctx, ticker)
		if err == nil && d.Deviation > 0 {
			return float64(d.Deviation)
		}
		if err != nil && !models.IsUnavailable(err) {
			l.Warn("stored deviation unavailable", applogger.String("ticker", ticker), applogger.Error(err))
		}
	}
	return cfg.BaseDeviation
}
