package alerts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/linnemanlabs/coinwatch/internal/coins"
)

// NotificationTitle is the title of every triggered-alert notification.
const NotificationTitle = "Price Alert Triggered"

// ScreenAlerts is the routing target carried in notification data.
const ScreenAlerts = "Alerts"

// Notification is one user-facing message about a triggered alert.
type Notification struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
}

// NotificationData tells the UI where to navigate when the notification is
// tapped.
type NotificationData struct {
	Screen string `json:"screen"`
	CoinID string `json:"coinId"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// NotificationFor builds the message for a triggered alert, e.g.
// "Bitcoin (BTC) is above $50000 (now $50010.5)".
func NotificationFor(t TriggeredAlert) Notification {
	return Notification{
		ID:    t.ID,
		Title: NotificationTitle,
		Body: fmt.Sprintf("%s is %s $%s (now $%s)",
			coins.Label(t.CoinID),
			t.Direction,
			formatUSD(t.TargetUSD),
			formatUSD(t.TriggerPriceUSD),
		),
		Data: NotificationData{Screen: ScreenAlerts, CoinID: t.CoinID},
	}
}

// formatUSD prints the shortest decimal that round-trips, without exponent.
func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) error { return nil }
