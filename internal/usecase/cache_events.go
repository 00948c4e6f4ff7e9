package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	applogger "CoveredCall/pkg/logger"
)

// CacheInvalidator drops cached predictions when any replica publishes model.updated,
// so in-process cache layers never serve a prediction from a replaced model.
type CacheInvalidator struct {
	cache domrepo.PredictionCache
	l     *applogger.Logger
}

func NewCacheInvalidator(cache domrepo.PredictionCache, l *applogger.Logger) *CacheInvalidator {
	if l == nil {
		l = applogger.Nop()
	}
	return &CacheInvalidator{cache: cache, l: l}
}

// Handle decodes one event envelope and ignores every type other than model.updated.
// Undecodable events are returned as errors so they reach the dead letter topic.
func (h *CacheInvalidator) Handle(ctx context.Context, data []byte) error {
	var ev models.EventHeader
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.Type != models.EventModelUpdated || ev.Ticker == "" {
		return nil
	}
	if err := h.cache.Invalidate(ctx, ev.Ticker); err != nil {
		return fmt.Errorf("invalidate %s: %w", ev.Ticker, err)
	}
	h.l.Debug("prediction cache invalidated", applogger.String("ticker", ev.Ticker))
	return nil
}
