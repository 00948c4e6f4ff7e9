package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/services/features"
	"CoveredCall/internal/services/training"
	"CoveredCall/pkg/config"
	applogger "CoveredCall/pkg/logger"
)

const (
	msgModelsUpdated = "Model and features for all tickers updated and saved."
	msgModelsFailed  = "An error occurred while updating models: "
	trainLockTTL     = 30 * time.Minute
)

// ModelsUseCase retrains the per-ticker classifiers from stored price history.
type ModelsUseCase struct {
	history domrepo.PriceHistory
	store   domrepo.ModelStore
	preds   domrepo.PredictionCache
	events  domrepo.EventPublisher
	locker  domrepo.Locker
	metrics domrepo.Metrics
	trainer *training.Trainer
	cfg     config.Strategy
	l       *applogger.Logger
	now     func() time.Time
}

func NewModelsUseCase(
	history domrepo.PriceHistory,
	store domrepo.ModelStore,
	preds domrepo.PredictionCache,
	events domrepo.EventPublisher,
	locker domrepo.Locker,
	metrics domrepo.Metrics,
	trainer *training.Trainer,
	cfg config.Strategy,
	l *applogger.Logger,
) *ModelsUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &ModelsUseCase{
		history: history,
		store:   store,
		preds:   preds,
		events:  events,
		locker:  locker,
		metrics: metrics,
		trainer: trainer,
		cfg:     cfg,
		l:       l,
		now:     time.Now,
	}
}

// UpdateModels trains every ticker in turn. A failing ticker is logged and recorded in
// Status.Failures; the remaining tickers are still processed.
func (uc *ModelsUseCase) UpdateModels(ctx context.Context, tickers, featureNames []string) models.Status {
	if len(tickers) == 0 {
		tickers = uc.cfg.Tickers
	}
	if len(featureNames) == 0 {
		featureNames = uc.cfg.Features
	}
	if len(featureNames) == 0 {
		featureNames = models.DefaultFeatures
	}
	if err := models.ValidateFeatures(featureNames); err != nil {
		return models.Status{Success: false, Message: msgModelsFailed + err.Error()}
	}

	start := time.Now()
	defer func() { uc.metrics.RecordLatency("update_models", time.Since(start).Seconds()) }()

	failures := map[string]string{}
	for _, t := range tickers {
		m, err := uc.updateTicker(ctx, t, featureNames)
		if err != nil {
			failures[t] = err.Error()
			uc.metrics.RecordError(errorKind(err))
			uc.l.Error("model update failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		uc.l.Info("model updated",
			applogger.String("ticker", t),
			applogger.Strings("features", m.Features),
			applogger.Float64("accuracy", m.TrainAccuracy))
	}
	return batchStatus(failures, msgModelsUpdated, msgModelsFailed)
}

func (uc *ModelsUseCase) updateTicker(ctx context.Context, ticker string, featureNames []string) (*models.TrainedModel, error) {
	if uc.locker != nil {
		key := "locks:train:" + ticker
		ok, err := uc.locker.TryLock(ctx, key, trainLockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", ticker, err)
		}
		if !ok {
			return nil, fmt.Errorf("training for %s already in progress", ticker)
		}
		defer func() {
			if err := uc.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				uc.l.Warn("unlock failed", applogger.String("ticker", ticker), applogger.Error(err))
			}
		}()
	}

	rows, err := uc.history.ReadAll(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", ticker, err)
	}
	dataset := features.Build(rows, features.WithSMAPeriod(uc.cfg.SMAPeriod))
	if len(dataset) == 0 {
		return nil, fmt.Errorf("no training rows for %s: %w", ticker, models.ErrDataUnavailable)
	}

	report, m, err := uc.trainer.TrainAndPrune(dataset, featureNames)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", ticker, err)
	}
	m.Ticker = ticker
	m.TrainedAt = uc.now().UTC()

	if err := uc.store.Save(ctx, ticker, m); err != nil {
		return nil, fmt.Errorf("save model %s: %w", ticker, err)
	}
	uc.metrics.RecordAccuracy(ticker, m.TrainAccuracy)

	if err := uc.preds.Invalidate(ctx, ticker); err != nil {
		uc.l.Warn("stale predictions kept", applogger.String("ticker", ticker), applogger.Error(err))
	}
	ev := models.ModelUpdatedEvent{
		Features:      m.Features,
		TrainAccuracy: m.TrainAccuracy,
		Pruning:       report.Pruning,
		Rows:          len(dataset),
	}
	if err := uc.events.PublishEvent(ctx, models.EventModelUpdated, ticker, ev); err != nil {
		uc.l.Warn("publish event failed", applogger.String("event", models.EventModelUpdated), applogger.Error(err))
	}
	return m, nil
}

// batchStatus folds per-ticker failures into the user-facing status.
func batchStatus(failures map[string]string, okMsg, failPrefix string) models.Status {
	if len(failures) == 0 {
		return models.Status{Success: true, Message: okMsg}
	}
	keys := make([]string, 0, len(failures))
	for k := range failures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + failures[k]
	}
	return models.Status{
		Success:  false,
		Message:  failPrefix + strings.Join(parts, "; "),
		Failures: failures,
	}
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case models.IsUnavailable(err):
		return "data_unavailable"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrCollaborator):
		return "collaborator"
	}
	return "internal"
}
