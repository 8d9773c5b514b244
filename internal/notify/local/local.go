// Package local keeps an in-process notification center: delivered
// notifications, the permission gate, and tap routing for the UI.
package local

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
)

// DefaultCapacity bounds the inbox when no capacity is given.
const DefaultCapacity = 100

// ErrNotFound is returned by Tap for an unknown notification id.
var ErrNotFound = errors.New("notification not found")

// EventKind distinguishes center events.
type EventKind string

const (
	EventDelivered EventKind = "delivered"
	EventTapped    EventKind = "tapped"
)

// Delivered is a notification as shown to the user.
type Delivered struct {
	alerts.Notification
	DeliveredAt time.Time  `json:"deliveredAt"`
	TappedAt    *time.Time `json:"tappedAt,omitempty"`
}

// Event is published to subscribers on every delivery and tap.
type Event struct {
	Kind         EventKind `json:"kind"`
	Notification Delivered `json:"notification"`
}

// Center is a bounded inbox of delivered notifications.
type Center struct {
	mu         sync.Mutex
	enabled    bool
	capacity   int
	inbox      []Delivered // newest first
	lastTapped *Delivered

	logger log.Logger
	clock  func() time.Time

	subs   map[int]chan Event
	nextID int
}

// New creates a notification center. capacity <= 0 uses DefaultCapacity.
func New(enabled bool, capacity int, logger log.Logger) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Center{
		enabled:  enabled,
		capacity: capacity,
		logger:   logger,
		clock:    time.Now,
		subs:     make(map[int]chan Event),
	}
}

// SetEnabled grants or revokes notification permission.
func (c *Center) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Enabled reports whether notifications are currently permitted.
func (c *Center) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Notify delivers n to the inbox. While disabled it drops n without error;
// the notification is not queued for later.
func (c *Center) Notify(ctx context.Context, n alerts.Notification) error {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		c.logger.Info(ctx, "notification dropped, not permitted", "notification_id", n.ID, "coin", n.Data.CoinID)
		return nil
	}

	d := Delivered{Notification: n, DeliveredAt: c.clock().UTC()}
	c.inbox = append([]Delivered{d}, c.inbox...)
	if len(c.inbox) > c.capacity {
		c.inbox = c.inbox[:c.capacity]
	}
	c.publish(Event{Kind: EventDelivered, Notification: d})
	c.mu.Unlock()

	c.logger.Info(ctx, "notification delivered", "notification_id", n.ID, "coin", n.Data.CoinID)
	return nil
}

// Inbox returns a copy of delivered notifications, newest first.
func (c *Center) Inbox() []Delivered {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivered, len(c.inbox))
	copy(out, c.inbox)
	return out
}

// Tap records that the user opened notification id and returns its routing
// data.
func (c *Center) Tap(ctx context.Context, id string) (alerts.NotificationData, error) {
	c.mu.Lock()
	idx := -1
	for i := range c.inbox {
		if c.inbox[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return alerts.NotificationData{}, ErrNotFound
	}

	now := c.clock().UTC()
	c.inbox[idx].TappedAt = &now
	d := c.inbox[idx]
	c.lastTapped = &d
	c.publish(Event{Kind: EventTapped, Notification: d})
	c.mu.Unlock()

	c.logger.Info(ctx, "notification tapped", "notification_id", id, "screen", d.Data.Screen, "coin", d.Data.CoinID)
	return d.Data, nil
}

// LastTapped returns the most recently tapped notification, used to route the
// UI after a cold start.
func (c *Center) LastTapped() (Delivered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastTapped == nil {
		return Delivered{}, false
	}
	return *c.lastTapped, true
}

// Subscribe returns a channel of delivery and tap events. Events are dropped
// for subscribers whose buffer is full. The cancel func must be called to
// release the channel.
func (c *Center) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with c.mu held.
func (c *Center) publish(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
