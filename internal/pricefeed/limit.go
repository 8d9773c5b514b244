package pricefeed

import (
	"context"
	"fmt"

	"github.com/go-redis/redis_rate/v10"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/pricefeed/coingecko"
)

// LimitKey is the redis_rate key shared by every replica polling CoinGecko.
const LimitKey = "coinwatch:coingecko"

// Allower is satisfied by *redis_rate.Limiter.
type Allower interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// LimitedSource spends one unit of a shared request budget per fetch. A
// fetch over budget fails with coingecko.ErrRateLimited without calling the
// upstream, so the poller's retry backoff applies.
type LimitedSource struct {
	inner   Source
	limiter Allower
	limit   redis_rate.Limit
}

// NewLimitedSource wraps inner with a per-minute budget.
func NewLimitedSource(inner Source, limiter Allower, perMinute int) *LimitedSource {
	return &LimitedSource{inner: inner, limiter: limiter, limit: redis_rate.PerMinute(perMinute)}
}

// SimplePrices implements Source.
func (s *LimitedSource) SimplePrices(ctx context.Context, ids []string) (alerts.Prices, error) {
	res, err := s.limiter.Allow(ctx, LimitKey, s.limit)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if res.Allowed == 0 {
		return nil, fmt.Errorf("retry after %s: %w", res.RetryAfter, coingecko.ErrRateLimited)
	}
	return s.inner.SimplePrices(ctx, ids)
}
