// Package redispub publishes triggered-alert notifications on a Redis
// channel so other processes (a push gateway, a second UI) can follow along.
package redispub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
)

// DefaultChannel is the channel notifications are published on.
const DefaultChannel = "coinwatch:notifications"

// Publisher is the subset of the Redis client used here.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Notifier publishes notifications as JSON.
type Notifier struct {
	client  Publisher
	channel string
}

// New creates a notifier. An empty channel uses DefaultChannel.
func New(client Publisher, channel string) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{client: client, channel: channel}
}

// Notify implements alerts.Notifier. Having no subscribers is not an error.
func (n *Notifier) Notify(ctx context.Context, note alerts.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("redispub: marshal: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("redispub: publish %s: %w", n.channel, err)
	}
	return nil
}
