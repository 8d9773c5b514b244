package notify

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
)

func TestMulti_DeliversToAll(t *testing.T) {
	t.Parallel()

	var a, b atomic.Int32
	m := NewMulti(
		Named{Name: "a", Notifier: alerts.NotifierFunc(func(context.Context, alerts.Notification) error { a.Add(1); return nil })},
		Named{Name: "nil", Notifier: nil},
		Named{Name: "b", Notifier: alerts.NotifierFunc(func(context.Context, alerts.Notification) error { b.Add(1); return nil })},
	)

	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
	if err := m.Notify(context.Background(), alerts.Notification{ID: "n1"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", a.Load(), b.Load())
	}
}

func TestMulti_JoinsFailures(t *testing.T) {
	t.Parallel()

	errSlack := errors.New("webhook down")
	var delivered atomic.Bool
	m := NewMulti(
		Named{Name: "slack", Notifier: alerts.NotifierFunc(func(context.Context, alerts.Notification) error { return errSlack })},
		Named{Name: "local", Notifier: alerts.NotifierFunc(func(context.Context, alerts.Notification) error { delivered.Store(true); return nil })},
	)

	err := m.Notify(context.Background(), alerts.Notification{ID: "n1"})
	if !errors.Is(err, errSlack) {
		t.Fatalf("err = %v, want wrapped webhook error", err)
	}
	if !strings.Contains(err.Error(), "slack:") {
		t.Errorf("err = %q, want dispatcher name", err)
	}
	if !delivered.Load() {
		t.Error("healthy dispatcher skipped after failure")
	}
}

func TestMulti_Empty(t *testing.T) {
	t.Parallel()

	if err := NewMulti().Notify(context.Background(), alerts.Notification{}); err != nil {
		t.Errorf("Notify: %v", err)
	}
}
