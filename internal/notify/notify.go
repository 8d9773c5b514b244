// Package notify fans triggered-alert notifications out to several
// dispatchers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
)

// Named pairs a dispatcher with a name used in errors.
type Named struct {
	Name     string
	Notifier alerts.Notifier
}

// Multi delivers each notification to every dispatcher concurrently. One
// dispatcher failing does not stop the others; all failures are joined.
type Multi struct {
	targets []Named
}

// NewMulti creates a fan-out notifier. Nil notifiers are skipped.
func NewMulti(targets ...Named) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t.Notifier != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

// Len returns the number of dispatchers.
func (m *Multi) Len() int {
	return len(m.targets)
}

// Notify implements alerts.Notifier.
func (m *Multi) Notify(ctx context.Context, n alerts.Notification) error {
	errs := make([]error, len(m.targets))

	var wg sync.WaitGroup
	for i, t := range m.targets {
		wg.Go(func() {
			if err := t.Notifier.Notify(ctx, n); err != nil {
				errs[i] = fmt.Errorf("%s: %w", t.Name, err)
			}
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}
