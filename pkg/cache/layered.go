package cache

import (
	"context"
	"time"
)

type LayeredOption func(*LayeredCache)

// WithL1Size bounds the in-process layer.
func WithL1Size(size int) LayeredOption {
	return func(lc *LayeredCache) {
		if size > 0 {
			lc.l1Size = size
		}
	}
}

// WithL1TTL bounds how long the in-process layer may answer without asking Redis.
// Other replicas only see deletes once their copy ages out.
func WithL1TTL(ttl time.Duration) LayeredOption {
	return func(lc *LayeredCache) {
		if ttl > 0 {
			lc.l1TTL = ttl
		}
	}
}

// LayeredCache reads through an in-process LRU to Redis and writes through to both.
// Locks always go to Redis since they must be visible across replicas.
type LayeredCache struct {
	l1     *MemoryCache
	l2     *RedisCache
	l1Size int
	l1TTL  time.Duration
}

func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	lc := &LayeredCache{l2: l2, l1Size: 256, l1TTL: time.Minute}
	for _, opt := range opts {
		opt(lc)
	}
	lc.l1 = NewMemoryCache(WithMemoryMaxSize(lc.l1Size))
	return lc
}

// localTTL never lets L1 outlive the entry itself.
func (lc *LayeredCache) localTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.l1TTL {
		return expiration
	}
	return lc.l1TTL
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.l2.Set(ctx, key, string(data), expiration); err != nil {
		return err
	}
	lc.l1.mu.Lock()
	lc.l1.put(key, data, lc.localTTL(expiration))
	lc.l1.mu.Unlock()
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	var raw string
	if err := lc.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	lc.l1.mu.Lock()
	lc.l1.put(key, []byte(raw), lc.l1TTL)
	lc.l1.mu.Unlock()
	return decode([]byte(raw), dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.l1.DeleteByPattern(ctx, pattern)
	return lc.l2.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

// CloseL1 stops the in-process layer. The Redis client is owned by its provider.
func (lc *LayeredCache) CloseL1() error {
	return lc.l1.Close()
}
