package repository

import (
	"context"
	"errors"
	"time"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/pkg/cache"
)

// ResultCache stores finished results keyed by bt:<symbol>:<tf>:<days>.
type ResultCache struct {
	svc cache.Service
	ttl time.Duration
}

func NewResultCache(svc cache.Service, ttl time.Duration) *ResultCache {
	return &ResultCache{svc: svc, ttl: ttl}
}

func ResultKey(symbol, tf string, days int) string {
	return cache.GenerateKeyWithParams("bt", symbol, tf, days)
}

// Get returns (nil, nil) on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*models.BacktestResult, error) {
	var r models.BacktestResult
	if err := c.svc.Get(ctx, key, &r); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (c *ResultCache) Put(ctx context.Context, key string, r *models.BacktestResult) error {
	return c.svc.Set(ctx, key, r, c.ttl)
}
