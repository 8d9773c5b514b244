package alertapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
)

// handlePushPrices feeds an externally supplied snapshot to the service, the
// same path the poller takes.
func (a *API) handlePushPrices(w http.ResponseWriter, r *http.Request) {
	var prices alerts.Prices
	if err := json.NewDecoder(r.Body).Decode(&prices); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res, err := a.svc.Observe(r.Context(), prices)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Bool("coinwatch.observe.skipped", res.Skipped),
		attribute.Int("coinwatch.alerts.triggered", len(res.Triggered)),
	)

	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLatestPrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.opts.Prices.Latest())
}
