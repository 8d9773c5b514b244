package alerts

import (
	"math"
	"time"
)

// Direction is the side of the target price that fires an alert.
type Direction string

const (
	// Above fires when the price rises to or past the target
	Above Direction = "above"

	// Below fires when the price falls to or past the target
	Below Direction = "below"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == Above || d == Below
}

// PriceAlert is an active, not yet triggered, price threshold rule.
type PriceAlert struct {
	ID           string    `json:"id"`
	CoinID       string    `json:"coinId"`
	Direction    Direction `json:"direction"`
	TargetUSD    float64   `json:"targetUsd"`
	CreatedAtUTC time.Time `json:"createdAtUtc"`
}

// TriggeredAlert is a history entry recording one firing of a PriceAlert.
// Only Read changes after creation.
type TriggeredAlert struct {
	ID              string    `json:"id"`
	AlertID         string    `json:"alertId"`
	CoinID          string    `json:"coinId"`
	Direction       Direction `json:"direction"`
	TargetUSD       float64   `json:"targetUsd"`
	TriggerPriceUSD float64   `json:"triggerPriceUsd"`
	TriggeredAtUTC  time.Time `json:"triggeredAtUtc"`
	Read            bool      `json:"read"`
}

// State is the aggregate root owned by the Store. Both collections are
// ordered newest first.
type State struct {
	ActiveAlerts map[string][]PriceAlert `json:"activeAlerts"`
	TriggeredAll []TriggeredAlert        `json:"triggeredAll"`
}

// NewState returns an empty state.
func NewState() State {
	return State{
		ActiveAlerts: make(map[string][]PriceAlert),
		TriggeredAll: []TriggeredAlert{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		ActiveAlerts: make(map[string][]PriceAlert, len(s.ActiveAlerts)),
		TriggeredAll: make([]TriggeredAlert, len(s.TriggeredAll)),
	}
	for coin, list := range s.ActiveAlerts {
		cp := make([]PriceAlert, len(list))
		copy(cp, list)
		out.ActiveAlerts[coin] = cp
	}
	copy(out.TriggeredAll, s.TriggeredAll)
	return out
}

// Flatten returns every active alert across all coins in one slice.
// Coins are visited in map order; callers must not rely on cross-coin order.
func (s State) Flatten() []PriceAlert {
	var out []PriceAlert
	for _, list := range s.ActiveAlerts {
		out = append(out, list...)
	}
	return out
}

// UnreadCount returns the number of unread history entries.
func (s State) UnreadCount() int {
	n := 0
	for _, t := range s.TriggeredAll {
		if !t.Read {
			n++
		}
	}
	return n
}

// Prices is one snapshot of USD prices keyed by coin id.
type Prices map[string]float64

// Known returns a copy of p without non-finite entries.
func (p Prices) Known() Prices {
	out := make(Prices, len(p))
	for id, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[id] = v
	}
	return out
}

// IDFunc produces unique identifiers.
type IDFunc func() string

// Clock returns the current time.
type Clock func() time.Time
