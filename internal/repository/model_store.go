package repository

import (
	"context"
	"errors"
	"fmt"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	pkgcache "CoveredCall/pkg/cache"
)

const modelKeyPrefix = "models"

// CacheModelStore implements ModelStore on a cache.Service (Redis in production, memory in dev).
type CacheModelStore struct {
	c pkgcache.Service
}

func NewCacheModelStore(c pkgcache.Service) domrepo.ModelStore {
	return &CacheModelStore{c: c}
}

func (s *CacheModelStore) Save(ctx context.Context, ticker string, model *models.TrainedModel) error {
	if model == nil || model.Classifier == nil {
		return fmt.Errorf("save model %s: %w", ticker, models.ErrInvalidInput)
	}
	if err := s.c.Set(ctx, pkgcache.Key(modelKeyPrefix, ticker), model, 0); err != nil {
		return fmt.Errorf("save model %s: %w", ticker, err)
	}
	return nil
}

func (s *CacheModelStore) Load(ctx context.Context, ticker string) (*models.TrainedModel, error) {
	var m models.TrainedModel
	err := s.c.Get(ctx, pkgcache.Key(modelKeyPrefix, ticker), &m)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, fmt.Errorf("model %s: %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", ticker, err)
	}
	if m.Classifier == nil {
		return nil, fmt.Errorf("model %s has no classifier: %w", ticker, models.ErrNotFound)
	}
	return &m, nil
}
