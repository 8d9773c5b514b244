package alertapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/coins"
)

// saveAlertRequest is the create/edit body. Target accepts either a JSON
// string as typed by the user ("$1,250.50") or a JSON number.
type saveAlertRequest struct {
	Direction alerts.Direction `json:"direction"`
	Target    targetInput      `json:"target"`
	EditingID string           `json:"editingId,omitempty"`
}

type targetInput string

func (t *targetInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = targetInput(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("target must be a string or number")
	}
	*t = targetInput(n.String())
	return nil
}

type unreadCountResponse struct {
	Unread int `json:"unread"`
}

func (a *API) handleListCoins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, coins.All())
}

func (a *API) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Store().State())
}

func (a *API) handleUnreadCount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, unreadCountResponse{Unread: a.svc.Store().UnreadCount()})
}

func (a *API) handleListTriggered(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Store().Triggered())
}

func (a *API) handleListCoinAlerts(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinId")
	if !coins.Known(coinID) {
		writeError(w, http.StatusNotFound, "unknown coin")
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Store().ActiveFor(coinID))
}

func (a *API) handleSaveAlert(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinId")

	var body saveAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("coinwatch.coin", coinID),
		attribute.String("coinwatch.alert.direction", string(body.Direction)),
	)

	res, err := a.svc.SaveAlert(r.Context(), alerts.SaveRequest{
		CoinID:    coinID,
		Direction: alerts.Direction(strings.ToLower(string(body.Direction))),
		Target:    string(body.Target),
		EditingID: body.EditingID,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("coinwatch.alert.id", res.Alert.ID))

	status := http.StatusCreated
	if res.Outcome == alerts.OutcomeUpdated {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (a *API) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	a.svc.RemoveAlert(chi.URLParam(r, "coinId"), chi.URLParam(r, "alertId"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	a.svc.MarkRead(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMarkAllRead(w http.ResponseWriter, _ *http.Request) {
	a.svc.MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleClearAll(w http.ResponseWriter, _ *http.Request) {
	a.svc.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleClearUnread(w http.ResponseWriter, _ *http.Request) {
	a.svc.ClearUnread()
	w.WriteHeader(http.StatusNoContent)
}

type evaluateRequest struct {
	Active []alerts.PriceAlert `json:"active"`
	Prices alerts.Prices       `json:"prices"`
}

func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Evaluate(body.Active, body.Prices))
}

type testTriggerRequest struct {
	CoinID string `json:"coinId"`
}

func (a *API) handleTestTrigger(w http.ResponseWriter, r *http.Request) {
	var body testTriggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}

	t, err := a.svc.TestTrigger(r.Context(), body.CoinID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
