package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/services/features"
	"CoveredCall/internal/services/strategy"
	"CoveredCall/internal/services/training"
	"CoveredCall/pkg/config"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/util"
)

// PredictUseCase turns the latest stored features into a strike recommendation.
type PredictUseCase struct {
	history    domrepo.PriceHistory
	store      domrepo.ModelStore
	deviations domrepo.DeviationStore
	cache      domrepo.PredictionCache
	journal    domrepo.Journal
	events     domrepo.EventPublisher
	metrics    domrepo.Metrics
	cfg        config.Strategy
	l          *applogger.Logger
	now        func() time.Time
}

func NewPredictUseCase(
	history domrepo.PriceHistory,
	store domrepo.ModelStore,
	deviations domrepo.DeviationStore,
	cache domrepo.PredictionCache,
	journal domrepo.Journal,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	cfg config.Strategy,
	l *applogger.Logger,
) *PredictUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &PredictUseCase{
		history:    history,
		store:      store,
		deviations: deviations,
		cache:      cache,
		journal:    journal,
		events:     events,
		metrics:    metrics,
		cfg:        cfg,
		l:          l,
		now:        time.Now,
	}
}

type PredictParams struct {
	Ticker     string
	OptionType models.OptionType
	// BaseDeviation overrides the stored/configured base when positive.
	BaseDeviation float64
}

// PredictOption returns nil without error when no model or no feature row is available.
// Results computed with the default base are cached until the next model update.
func (uc *PredictUseCase) PredictOption(ctx context.Context, p PredictParams) (*models.PredictionResult, error) {
	if p.Ticker == "" {
		return nil, fmt.Errorf("ticker required: %w", models.ErrInvalidInput)
	}
	ot, err := models.ParseOptionType(string(p.OptionType))
	if err != nil {
		return nil, err
	}
	cacheable := p.BaseDeviation <= 0
	if cacheable {
		if r, ok := uc.cache.Get(ctx, p.Ticker, ot); ok {
			r.Date = util.FormatDate(util.NextTradingDay(uc.now()))
			return r, nil
		}
	}

	began := time.Now()
	defer func() { uc.metrics.RecordLatency("predict", time.Since(began).Seconds()) }()

	r, err := uc.predict(ctx, p.Ticker, ot, p.BaseDeviation)
	if err != nil {
		uc.metrics.RecordError(errorKind(err))
		if errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		uc.l.Warn("prediction skipped",
			applogger.String("ticker", p.Ticker),
			applogger.String("option_type", string(ot)),
			applogger.Error(err))
		return nil, nil
	}

	if err := uc.journal.RecordPrediction(ctx, r); err != nil {
		uc.l.Warn("journal prediction failed", applogger.String("ticker", r.Ticker), applogger.Error(err))
	}
	if err := uc.events.PublishEvent(ctx, models.EventPredictionCreated, r.Ticker, r); err != nil {
		uc.l.Warn("publish event failed", applogger.String("event", models.EventPredictionCreated), applogger.Error(err))
	}
	if cacheable {
		if err := uc.cache.Set(ctx, r); err != nil {
			uc.l.Warn("cache prediction failed", applogger.String("ticker", r.Ticker), applogger.Error(err))
		}
	}
	uc.metrics.RecordPrediction(r.Ticker, r.OptionType, r.Probabilities[1])

	uc.l.Info("prediction",
		applogger.String("ticker", r.Ticker),
		applogger.String("option_type", r.OptionType),
		applogger.Float64("reference_price", r.ReferencePrice),
		applogger.Float64("deviation", r.Deviation),
		applogger.Int("strike", r.StrikePrice))
	return r, nil
}

func (uc *PredictUseCase) predict(ctx context.Context, ticker string, ot models.OptionType, base float64) (*models.PredictionResult, error) {
	model, err := uc.store.Load(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	rows, err := uc.history.ReadAll(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no price history for %s: %w", ticker, models.ErrDataUnavailable)
	}
	dataset := features.Build(rows, features.WithDates(), features.WithSMAPeriod(uc.cfg.SMAPeriod))
	if len(dataset) == 0 {
		return nil, fmt.Errorf("no feature rows for %s: %w", ticker, models.ErrDataUnavailable)
	}

	probs, class, err := training.Predict(model, dataset[len(dataset)-1])
	if err != nil {
		return nil, err
	}
	base = resolveBaseDeviation(ctx, uc.deviations, uc.cfg, ticker, base, uc.l)
	th := strategy.Thresholds{Upper: uc.cfg.UpperThreshold, Lower: uc.cfg.LowerThreshold}
	dev := strategy.Deviation(probs[1], base, th)

	ref := rows[len(rows)-1].Close
	strike, err := strategy.Strike(ref, dev, ot)
	if err != nil {
		return nil, err
	}
	return &models.PredictionResult{
		Ticker:         ticker,
		OptionType:     string(ot),
		PredictedClass: class,
		Probabilities:  probs,
		Deviation:      dev,
		BaseDeviation:  base,
		ReferencePrice: ref,
		StrikePrice:    strike,
		Date:           util.FormatDate(util.NextTradingDay(uc.now())),
	}, nil
}

// PredictDaily predicts both sides for every options ticker. Tickers without data are left out.
func (uc *PredictUseCase) PredictDaily(ctx context.Context) ([]models.PredictionResult, error) {
	out := make([]models.PredictionResult, 0, 2*len(uc.cfg.OptionsTickers))
	for _, t := range uc.cfg.OptionsTickers {
		for _, ot := range []models.OptionType{models.OptionCall, models.OptionPut} {
			r, err := uc.PredictOption(ctx, PredictParams{Ticker: t, OptionType: ot})
			if err != nil {
				return nil, err
			}
			if r != nil {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}
