package alerts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/coinwatch/internal/coins"
)

var tracer = otel.Tracer("github.com/linnemanlabs/coinwatch/internal/alerts")

// Observe results, also used as metric labels.
const (
	ReasonDuplicate = "duplicate"
	ReasonNoActive  = "no active alerts"
	resultNoTrigger = "no trigger"
	resultTriggered = "triggered"
)

// ServiceHooks lets callers observe the lifecycle without coupling the
// service to a metrics backend. Nil fields are skipped.
type ServiceHooks struct {
	OnObserve   func(result string)
	OnTriggered func(t TriggeredAlert)
	OnNotify    func(err error, duration time.Duration)
}

// ObserveResult is the outcome of handing one price snapshot to the service.
type ObserveResult struct {
	Fingerprint string           `json:"fingerprint"`
	Skipped     bool             `json:"skipped"`
	Reason      string           `json:"reason,omitempty"`
	Triggered   []TriggeredAlert `json:"triggered"`
}

// SaveOutcome says what a save did to the coin's active alerts.
type SaveOutcome string

const (
	OutcomeCreated  SaveOutcome = "created"
	OutcomeUpdated  SaveOutcome = "updated"
	OutcomeReplaced SaveOutcome = "replaced"
)

// SaveRequest is a user request to create or edit an alert. Target is the raw
// user input and is parsed with ParseTarget.
type SaveRequest struct {
	CoinID    string
	Direction Direction
	Target    string
	EditingID string
}

// SaveResult is the outcome of a successful save.
type SaveResult struct {
	Alert   PriceAlert  `json:"alert"`
	Outcome SaveOutcome `json:"outcome"`
	Message string      `json:"message"`
}

// Service is the business boundary for the alert lifecycle: it turns price
// snapshots into triggered alerts and notifications, and validates user edits.
type Service struct {
	store    *Store
	engine   *Engine
	notifier Notifier
	logger   log.Logger
	hooks    ServiceHooks
	ids      IDFunc
	clock    Clock

	// mu serializes snapshot processing and saves
	mu              sync.Mutex
	lastFingerprint string

	inflight sync.WaitGroup
}

// NewService creates a new alert service. A nil notifier drops notifications.
func NewService(store *Store, engine *Engine, notifier Notifier, logger log.Logger, hooks ServiceHooks) *Service {
	if store == nil {
		panic(xerrors.New("alerts store is required"))
	}
	if engine == nil {
		engine = NewEngine(nil, nil)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		hooks:    hooks,
		ids:      engine.ids,
		clock:    engine.clock,
	}
}

// Store returns the underlying store for reads and subscriptions.
func (s *Service) Store() *Store {
	return s.store
}

// Fingerprint returns the SHA-256 hex digest of the canonical JSON encoding
// of p. Map keys are encoded in sorted order.
func Fingerprint(p Prices) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal prices: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Observe processes one price snapshot. A snapshot identical to the last one
// processed is skipped. Triggered alerts are moved into the history before
// their notifications are dispatched in the background.
func (s *Service) Observe(ctx context.Context, prices Prices) (*ObserveResult, error) {
	ctx, span := tracer.Start(ctx, "alerts.observe", trace.WithAttributes(
		attribute.Int("coinwatch.prices.count", len(prices)),
	))
	defer span.End()

	known := prices.Known()
	fp, err := Fingerprint(known)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("coinwatch.prices.fingerprint", fp))

	res, err := s.observe(ctx, fp, known)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := resultTriggered
	switch {
	case res.Skipped:
		result = res.Reason
	case len(res.Triggered) == 0:
		result = resultNoTrigger
	}
	span.SetAttributes(
		attribute.String("coinwatch.observe.result", result),
		attribute.Int("coinwatch.alerts.triggered", len(res.Triggered)),
	)
	if s.hooks.OnObserve != nil {
		s.hooks.OnObserve(result)
	}

	for _, t := range res.Triggered {
		if s.hooks.OnTriggered != nil {
			s.hooks.OnTriggered(t)
		}
		s.dispatch(ctx, NotificationFor(t))
	}

	return res, nil
}

func (s *Service) observe(ctx context.Context, fp string, prices Prices) (*ObserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &ObserveResult{Fingerprint: fp, Triggered: []TriggeredAlert{}}

	if fp == s.lastFingerprint {
		res.Skipped = true
		res.Reason = ReasonDuplicate
		return res, nil
	}
	s.lastFingerprint = fp

	active := s.store.ActiveAlerts()
	if len(active) == 0 {
		res.Skipped = true
		res.Reason = ReasonNoActive
		return res, nil
	}

	ev := s.engine.Evaluate(active, prices)
	if len(ev.Triggered) == 0 {
		return res, nil
	}

	s.store.Retire(ev.Triggered)
	res.Triggered = ev.Triggered

	s.logger.Info(ctx, "price alerts triggered",
		"count", len(ev.Triggered),
		"remaining", len(ev.Remaining),
		"fingerprint", fp,
	)
	return res, nil
}

// dispatch delivers n in its own goroutine, detached from the caller's
// cancellation. Failures are logged and counted, never returned.
func (s *Service) dispatch(ctx context.Context, n Notification) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Go(func() {
		L := s.logger.With("notification_id", n.ID, "coin", n.Data.CoinID)

		start := time.Now()
		err := s.notify(ctx, n)
		if s.hooks.OnNotify != nil {
			s.hooks.OnNotify(err, time.Since(start))
		}
		if err != nil {
			L.Error(ctx, err, "notification dispatch failed")
		}
	})
}

func (s *Service) notify(ctx context.Context, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return s.notifier.Notify(ctx, n)
}

// Wait blocks until every in-flight notification dispatch has returned.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Evaluate runs the engine without touching the store.
func (s *Service) Evaluate(active []PriceAlert, prices Prices) Evaluation {
	return s.engine.Evaluate(active, prices.Known())
}

// SaveAlert validates req and creates or edits an alert. Edits keep the
// alert's id and creation time. Saving over an existing alert of the same
// direction replaces it. A save that would duplicate an existing rule is
// rejected with ErrDuplicate.
func (s *Service) SaveAlert(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	target, targetErr := ParseTarget(req.Target)
	if err := errors.Join(validateRule(req.CoinID, req.Direction), targetErr); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.store.ActiveFor(req.CoinID)

	var editing *PriceAlert
	if req.EditingID != "" {
		for i := range active {
			if active[i].ID == req.EditingID {
				editing = &active[i]
				break
			}
		}
		if editing == nil {
			return nil, fmt.Errorf("edit %s: %w", req.EditingID, ErrAlertNotFound)
		}
	}

	if IsDuplicate(active, req.Direction, target, req.EditingID) {
		return nil, ErrDuplicate
	}

	a := PriceAlert{
		ID:           req.EditingID,
		CoinID:       req.CoinID,
		Direction:    req.Direction,
		TargetUSD:    target,
		CreatedAtUTC: s.clock().UTC(),
	}
	outcome := OutcomeCreated
	if editing != nil {
		a.CreatedAtUTC = editing.CreatedAtUTC
		outcome = OutcomeUpdated
	} else {
		a.ID = s.ids()
		for _, p := range active {
			if p.Direction == req.Direction {
				outcome = OutcomeReplaced
				break
			}
		}
	}

	s.store.UpsertAlert(a)

	s.logger.Info(ctx, "price alert saved",
		"alert_id", a.ID,
		"coin", a.CoinID,
		"direction", a.Direction,
		"target_usd", a.TargetUSD,
		"outcome", outcome,
	)

	return &SaveResult{Alert: a, Outcome: outcome, Message: outcomeMessage(outcome, a.Direction)}, nil
}

func outcomeMessage(o SaveOutcome, dir Direction) string {
	switch o {
	case OutcomeReplaced:
		return "Replaced existing " + strings.ToUpper(string(dir)) + " alert."
	case OutcomeUpdated:
		return "Alert updated successfully!"
	default:
		return "Alert created successfully!"
	}
}

// testBasePrices are rough reference prices for synthetic triggers.
var testBasePrices = map[string]float64{
	"bitcoin":     45000,
	"ethereum":    3000,
	"binancecoin": 350,
	"solana":      150,
	"cardano":     0.5,
	"dogecoin":    0.08,
	"ripple":      0.6,
	"tether":      1,
	"usd-coin":    1,
	"tron":        0.07,
}

// TestTrigger records a synthetic triggered alert and dispatches its
// notification. An empty coinID picks a random catalog coin. The active
// alerts are not touched.
func (s *Service) TestTrigger(ctx context.Context, coinID string) (*TriggeredAlert, error) {
	var coin coins.Coin
	if coinID == "" {
		all := coins.All()
		coin = all[rand.IntN(len(all))]
	} else {
		c, ok := coins.Lookup(coinID)
		if !ok {
			return nil, &ValidationError{Field: "coinId", Message: "unknown coin " + coinID}
		}
		coin = c
	}

	base, ok := testBasePrices[coin.ID]
	if !ok {
		base = 100
	}

	dir := Below
	if rand.Float64() > 0.5 {
		dir = Above
	}
	target := roundCents(base * (1.2 + rand.Float64()*0.8))
	delta := rand.Float64() * 0.02
	if rand.Float64() > 0.5 {
		delta = -delta
	}
	now := s.clock().UTC()

	t := TriggeredAlert{
		ID:              s.ids(),
		AlertID:         fmt.Sprintf("test-alert-%s-%d", coin.ID, now.UnixMilli()),
		CoinID:          coin.ID,
		Direction:       dir,
		TargetUSD:       target,
		TriggerPriceUSD: roundCents(target * (1 + delta)),
		TriggeredAtUTC:  now,
	}

	s.store.AddTriggered([]TriggeredAlert{t})
	s.logger.Info(ctx, "synthetic alert triggered", "coin", t.CoinID, "direction", t.Direction)
	s.dispatch(ctx, NotificationFor(t))

	return &t, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// RemoveAlert deletes an active alert.
func (s *Service) RemoveAlert(coinID, alertID string) {
	s.store.RemoveAlert(coinID, alertID)
}

// MarkRead marks one history entry read.
func (s *Service) MarkRead(id string) {
	s.store.MarkTriggeredRead(id)
}

// MarkAllRead marks the whole history read.
func (s *Service) MarkAllRead() {
	s.store.MarkAllTriggeredRead()
}

// ClearAll empties the history.
func (s *Service) ClearAll() {
	s.store.ClearAllTriggered()
}

// ClearUnread drops unread history entries.
func (s *Service) ClearUnread() {
	s.store.ClearTriggeredUnread()
}
