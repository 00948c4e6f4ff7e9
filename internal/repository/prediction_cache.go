package repository

import (
	"context"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	pkgcache "CoveredCall/pkg/cache"
	applogger "CoveredCall/pkg/logger"
)

const predictionKeyPrefix = "predictions"

// CachePredictions memoizes PredictOption results per (ticker, option type).
type CachePredictions struct {
	c   pkgcache.Service
	ttl time.Duration
	l   *applogger.Logger
}

func NewCachePredictions(c pkgcache.Service, ttl time.Duration, l *applogger.Logger) domrepo.PredictionCache {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachePredictions{c: c, ttl: ttl, l: l}
}

func predictionKey(ticker string, ot models.OptionType) string {
	return pkgcache.Key(predictionKeyPrefix, ticker, ot)
}

// Get treats any cache error as a miss.
func (p *CachePredictions) Get(ctx context.Context, ticker string, optionType models.OptionType) (*models.PredictionResult, bool) {
	var r models.PredictionResult
	if err := p.c.Get(ctx, predictionKey(ticker, optionType), &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (p *CachePredictions) Set(ctx context.Context, r *models.PredictionResult) error {
	return p.c.Set(ctx, predictionKey(r.Ticker, models.OptionType(r.OptionType)), r, p.ttl)
}

func (p *CachePredictions) Invalidate(ctx context.Context, ticker string) error {
	pattern := pkgcache.Under(predictionKeyPrefix, ticker)
	if err := p.c.DeleteByPattern(ctx, pattern); err != nil {
		p.l.Warn("prediction cache invalidate failed", applogger.String("ticker", ticker), applogger.Error(err))
		return err
	}
	return nil
}

// NoopPredictions never hits.
type NoopPredictions struct{}

func (NoopPredictions) Get(context.Context, string, models.OptionType) (*models.PredictionResult, bool) {
	return nil, false
}
func (NoopPredictions) Set(context.Context, *models.PredictionResult) error { return nil }
func (NoopPredictions) Invalidate(context.Context, string) error { return nil }
