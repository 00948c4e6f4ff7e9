package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/services/features"
	"CoveredCall/internal/services/strategy"
	"CoveredCall/pkg/config"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/util"

	"github.com/google/uuid"
)

// BacktestUseCase replays the strike policy over stored prices and option bars.
type BacktestUseCase struct {
	history    domrepo.PriceHistory
	store      domrepo.ModelStore
	quotes     domrepo.OptionQuoteSource
	deviations domrepo.DeviationStore
	journal    domrepo.Journal
	events     domrepo.EventPublisher
	metrics    domrepo.Metrics
	cfg        config.Strategy
	l          *applogger.Logger
}

func NewBacktestUseCase(
	history domrepo.PriceHistory,
	store domrepo.ModelStore,
	quotes domrepo.OptionQuoteSource,
	deviations domrepo.DeviationStore,
	journal domrepo.Journal,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	cfg config.Strategy,
	l *applogger.Logger,
) *BacktestUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &BacktestUseCase{
		history:    history,
		store:      store,
		quotes:     quotes,
		deviations: deviations,
		journal:    journal,
		events:     events,
		metrics:    metrics,
		cfg:        cfg,
		l:          l,
	}
}

type BacktestParams struct {
	Ticker        string
	Start         time.Time
	End           time.Time
	BaseDeviation float64
	OptionType    models.OptionType
	// StopLoss is in cents; zero uses the configured value.
	StopLoss   float64
	WithTrades bool
}

// RunBacktest returns nil without error when there is nothing to trade: no model or
// no priced day in range with a defined deviation. Days whose option bar is missing
// still count as evaluated, so a range without any bars yields an empty summary.
func (uc *BacktestUseCase) RunBacktest(ctx context.Context, p BacktestParams) (*models.BacktestSummary, error) {
	if p.Ticker == "" {
		return nil, fmt.Errorf("ticker required: %w", models.ErrInvalidInput)
	}
	ot, err := models.ParseOptionType(string(p.OptionType))
	if err != nil {
		return nil, err
	}
	start, end := util.Day(p.Start), util.Day(p.End)
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("date range %s..%s: %w", util.FormatDate(start), util.FormatDate(end), models.ErrInvalidInput)
	}
	if p.StopLoss <= 0 {
		p.StopLoss = uc.cfg.StopLoss
	}

	began := time.Now()
	defer func() { uc.metrics.RecordLatency("backtest", time.Since(began).Seconds()) }()
	lg := uc.l.With(applogger.String("ticker", p.Ticker), applogger.String("option_type", string(ot)))

	quotes, err := uc.collectQuotes(ctx, p.Ticker, start, end, p.BaseDeviation, ot)
	if err != nil {
		uc.metrics.RecordError(errorKind(err))
		if errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		lg.Warn("backtest skipped", applogger.Error(err))
		return nil, nil
	}
	if len(quotes) == 0 {
		lg.Info("no priced days to backtest",
			applogger.Date("start", start), applogger.Date("end", end))
		return nil, nil
	}

	sum := strategy.NewSimulator(p.StopLoss).Run(quotes)
	sum.Ticker = p.Ticker

	runID := uuid.NewString()
	if err := uc.journal.RecordTrades(ctx, runID, sum.Trades); err != nil {
		lg.Warn("journal trades failed", applogger.String("run_id", runID), applogger.Error(err))
	}
	ev := models.BacktestCompletedEvent{
		RunID:      runID,
		StartDate:  util.FormatDate(start),
		EndDate:    util.FormatDate(end),
		OptionType: ot,
		StopLoss:   p.StopLoss,
		Summary:    sum,
	}
	ev.Summary.Trades = nil
	if err := uc.events.PublishEvent(ctx, models.EventBacktestCompleted, p.Ticker, ev); err != nil {
		lg.Warn("publish event failed", applogger.String("event", models.EventBacktestCompleted), applogger.Error(err))
	}
	uc.metrics.RecordBacktest(p.Ticker, sum.TotalProfit, sum.TotalTrades)

	lg.Info("backtest completed",
		applogger.String("run_id", runID),
		applogger.Int("trades", sum.TotalTrades),
		applogger.Float64("profit", sum.TotalProfit))

	if !p.WithTrades {
		sum.Trades = nil
	}
	return &sum, nil
}

// missingBar stands in for a day without stored option data; the simulator skips NaN prices.
func missingBar(ticker string, day time.Time, strike float64, ot models.OptionType) models.OptionBar {
	nan := math.NaN()
	return models.OptionBar{
		Ticker:      ticker,
		Date:        day,
		StrikePrice: strike,
		OptionType:  ot,
		Expiration:  day,
		Open:        nan,
		High:        nan,
		Low:         nan,
		Close:       nan,
	}
}

// collectQuotes pairs every priced day in range with the stored 0DTE option bar at the policy strike.
func (uc *BacktestUseCase) collectQuotes(ctx context.Context, ticker string, start, end time.Time, base float64, ot models.OptionType) ([]models.StrikeQuote, error) {
	model, err := uc.store.Load(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	base = resolveBaseDeviation(ctx, uc.deviations, uc.cfg, ticker, base, uc.l)

	all, err := uc.history.ReadAll(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	idx := features.Index(features.Build(all, features.WithDates(), features.WithSMAPeriod(uc.cfg.SMAPeriod)))

	bars, err := uc.history.ReadRange(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("read range: %w", err)
	}
	th := strategy.Thresholds{Upper: uc.cfg.UpperThreshold, Lower: uc.cfg.LowerThreshold}

	var out []models.StrikeQuote
	for _, b := range bars {
		dev, ok, err := strategy.DeviationForDate(b.Date, idx, model, base, th)
		if err != nil {
			return nil, fmt.Errorf("deviation %s: %w", util.FormatDate(b.Date), err)
		}
		if !ok {
			continue
		}
		strike, err := strategy.Strike(b.Close, dev, ot)
		if err != nil {
			return nil, err
		}
		bar, found, err := uc.quotes.GetBar(ctx, ticker, b.Date, float64(strike), ot, b.Date)
		if err != nil {
			return nil, fmt.Errorf("option bar %s: %w", util.FormatDate(b.Date), err)
		}
		if !found {
			bar = missingBar(ticker, b.Date, float64(strike), ot)
		}
		out = append(out, models.StrikeQuote{Strike: strike, Bar: bar})
	}
	return out, nil
}
