// Package pricefeed polls a price source on a fixed interval and hands each
// snapshot to the alert service.
package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/pricefeed/coingecko"
)

const (
	DefaultInterval   = 60 * time.Second
	DefaultRetries    = 2
	DefaultRetryDelay = time.Second
)

// Source fetches USD prices for a set of coin ids.
type Source interface {
	SimplePrices(ctx context.Context, ids []string) (alerts.Prices, error)
}

// Observer consumes a price snapshot. *alerts.Service satisfies it.
type Observer interface {
	Observe(ctx context.Context, prices alerts.Prices) (*alerts.ObserveResult, error)
}

// Snapshot is the most recent successful fetch.
type Snapshot struct {
	Prices    alerts.Prices `json:"prices"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Hooks are optional callbacks for metrics and realtime fan-out.
type Hooks struct {
	OnFetch  func(err error, dur time.Duration)
	OnPrices func(Snapshot)
}

// Config controls polling cadence and retries.
type Config struct {
	IDs        []string
	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Poller fetches prices from a Source and forwards them to an Observer.
type Poller struct {
	source   Source
	observer Observer
	logger   log.Logger
	cfg      Config
	hooks    Hooks

	mu     sync.RWMutex
	latest Snapshot
}

// New creates a Poller. Zero config values fall back to the defaults.
func New(source Source, observer Observer, logger log.Logger, cfg Config, hooks Hooks) *Poller {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Poller{
		source:   source,
		observer: observer,
		logger:   logger,
		cfg:      cfg,
		hooks:    hooks,
	}
}

// Run polls immediately and then once per interval until ctx is done.
// Failed polls are logged and the previous snapshot stays in place.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn(ctx, "price poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll performs one fetch (with retries) and one observation.
func (p *Poller) Poll(ctx context.Context) error {
	start := time.Now()
	prices, err := backoff.Retry(ctx, func() (alerts.Prices, error) {
		prices, err := p.source.SimplePrices(ctx, p.cfg.IDs)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return prices, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(p.cfg.Retries+1)), //nolint:gosec // Retries is clamped to >= 0
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Info(ctx, "retrying price fetch", "err", err, "backoff", next.String())
		}),
	)
	if p.hooks.OnFetch != nil {
		p.hooks.OnFetch(err, time.Since(start))
	}
	if err != nil {
		return err
	}

	snap := Snapshot{Prices: prices, UpdatedAt: time.Now().UTC()}
	p.mu.Lock()
	p.latest = snap
	p.mu.Unlock()
	if p.hooks.OnPrices != nil {
		p.hooks.OnPrices(snap)
	}

	res, err := p.observer.Observe(ctx, prices)
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}
	if len(res.Triggered) > 0 {
		p.logger.Info(ctx, "price alerts triggered", "count", len(res.Triggered))
	}
	return nil
}

// Latest returns a copy of the most recent successful fetch.
func (p *Poller) Latest() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := Snapshot{UpdatedAt: p.latest.UpdatedAt, Prices: make(alerts.Prices, len(p.latest.Prices))}
	for k, v := range p.latest.Prices {
		out.Prices[k] = v
	}
	return out
}

// retryable reports whether a fetch error is worth another attempt. Client
// errors other than rate limiting will not change on retry.
func retryable(err error) bool {
	var se *coingecko.StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return true
}
