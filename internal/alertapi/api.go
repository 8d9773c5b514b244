package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/notify/local"
	"github.com/linnemanlabs/coinwatch/internal/pricefeed"
)

// AlertService defines the business operations alertapi needs.
type AlertService interface {
	Store() *alerts.Store
	SaveAlert(ctx context.Context, req alerts.SaveRequest) (*alerts.SaveResult, error)
	RemoveAlert(coinID, alertID string)
	MarkRead(id string)
	MarkAllRead()
	ClearAll()
	ClearUnread()
	Observe(ctx context.Context, prices alerts.Prices) (*alerts.ObserveResult, error)
	Evaluate(active []alerts.PriceAlert, prices alerts.Prices) alerts.Evaluation
	TestTrigger(ctx context.Context, coinID string) (*alerts.TriggeredAlert, error)
}

// NotificationCenter is the local notification inbox.
type NotificationCenter interface {
	Inbox() []local.Delivered
	Tap(ctx context.Context, id string) (alerts.NotificationData, error)
	LastTapped() (local.Delivered, bool)
	Enabled() bool
	SetEnabled(enabled bool)
}

// PriceSnapshots exposes the latest polled prices.
type PriceSnapshots interface {
	Latest() pricefeed.Snapshot
}

// Options are the optional collaborators. Routes backed by a nil
// collaborator are not registered. The websocket stream is mounted by the
// caller outside the JSON middleware stack.
type Options struct {
	Center NotificationCenter
	Prices PriceSnapshots
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AlertService
	opts   Options
}

// New creates a new API handler.
func New(logger log.Logger, svc AlertService, opts Options) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("alert service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		opts:   opts,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/coins", a.handleListCoins)
		r.Get("/coins/{coinId}/alerts", a.handleListCoinAlerts)
		r.Post("/coins/{coinId}/alerts", a.handleSaveAlert)
		r.Delete("/coins/{coinId}/alerts/{alertId}", a.handleRemoveAlert)

		r.Get("/alerts", a.handleGetState)
		r.Get("/alerts/unread-count", a.handleUnreadCount)

		r.Get("/triggered", a.handleListTriggered)
		r.Post("/triggered/read-all", a.handleMarkAllRead)
		r.Post("/triggered/{id}/read", a.handleMarkRead)
		r.Delete("/triggered", a.handleClearAll)
		r.Delete("/triggered/unread", a.handleClearUnread)

		r.Post("/prices", a.handlePushPrices)
		r.Post("/evaluate", a.handleEvaluate)
		r.Post("/test-trigger", a.handleTestTrigger)

		if a.opts.Prices != nil {
			r.Get("/prices", a.handleLatestPrices)
		}
		if a.opts.Center != nil {
			r.Get("/notifications", a.handleInbox)
			r.Get("/notifications/last-tapped", a.handleLastTapped)
			r.Post("/notifications/{id}/tap", a.handleTap)
			r.Get("/notifications/permission", a.handleGetPermission)
			r.Put("/notifications/permission", a.handleSetPermission)
		}
	})
}

type errorBody struct {
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps alert service errors onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *alerts.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Field: ve.Field, Error: ve.Message})
	case errors.Is(err, alerts.ErrDuplicate):
		writeError(w, http.StatusConflict, alerts.MsgDuplicate)
	case errors.Is(err, alerts.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, local.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification not found")
	default:
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
