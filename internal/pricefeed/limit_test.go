package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v10"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/pricefeed/coingecko"
)

type mockAllower struct {
	allowed int
	err     error
	gotKey  string
	gotRate int
}

func (m *mockAllower) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	m.gotKey, m.gotRate = key, limit.Rate
	if m.err != nil {
		return nil, m.err
	}
	return &redis_rate.Result{Limit: limit, Allowed: m.allowed, RetryAfter: time.Second}, nil
}

func TestLimitedSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		allower   *mockAllower
		wantCalls int
		wantErr   error
	}{
		{"allowed", &mockAllower{allowed: 1}, 1, nil},
		{"over budget", &mockAllower{allowed: 0}, 0, coingecko.ErrRateLimited},
		{"limiter down", &mockAllower{err: errors.New("redis down")}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := &mockSource{out: alerts.Prices{"bitcoin": 1}}
			ls := NewLimitedSource(src, tt.allower, 30)

			_, err := ls.SimplePrices(context.Background(), []string{"bitcoin"})
			switch {
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			case tt.allower.err != nil && err == nil:
				t.Error("expected limiter error")
			case tt.allower.err == nil && tt.wantErr == nil && err != nil:
				t.Errorf("unexpected err: %v", err)
			}
			if got := src.count(); got != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.allower.gotKey != LimitKey || tt.allower.gotRate != 30 {
				t.Errorf("limit key/rate = %q/%d", tt.allower.gotKey, tt.allower.gotRate)
			}
		})
	}
}
