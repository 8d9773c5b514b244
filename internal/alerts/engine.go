package alerts

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Evaluation is the outcome of evaluating a set of active alerts against one
// price snapshot.
type Evaluation struct {
	Triggered []TriggeredAlert `json:"triggered"`
	Remaining []PriceAlert     `json:"remainingActive"`
}

// Engine decides which alerts fire for a price snapshot. It holds no state
// besides its id generator and clock and never touches the Store.
type Engine struct {
	ids   IDFunc
	clock Clock
}

// NewEngine creates an engine. Nil ids or clock fall back to ULIDs and
// time.Now.
func NewEngine(ids IDFunc, clock Clock) *Engine {
	if ids == nil {
		ids = NewID
	}
	if clock == nil {
		clock = time.Now
	}
	return &Engine{ids: ids, clock: clock}
}

// NewID returns a fresh ULID string.
func NewID() string {
	return ulid.Make().String()
}

// Evaluate splits active into alerts that fire at the given prices and
// alerts that stay active. Alerts for coins without a price are carried
// forward unchanged. Both outputs keep input order.
func (e *Engine) Evaluate(active []PriceAlert, prices Prices) Evaluation {
	ev := Evaluation{
		Triggered: []TriggeredAlert{},
		Remaining: []PriceAlert{},
	}
	if len(active) == 0 {
		return ev
	}

	now := e.clock().UTC()

	for _, a := range active {
		price, ok := prices[a.CoinID]
		if !ok || !hit(a, price) {
			ev.Remaining = append(ev.Remaining, a)
			continue
		}

		ev.Triggered = append(ev.Triggered, TriggeredAlert{
			ID:              e.ids(),
			AlertID:         a.ID,
			CoinID:          a.CoinID,
			Direction:       a.Direction,
			TargetUSD:       a.TargetUSD,
			TriggerPriceUSD: price,
			TriggeredAtUTC:  now,
			Read:            false,
		})
	}

	return ev
}

// hit is boundary inclusive in both directions. NaN never hits.
func hit(a PriceAlert, price float64) bool {
	switch a.Direction {
	case Above:
		return price >= a.TargetUSD
	case Below:
		return price <= a.TargetUSD
	default:
		return false
	}
}
