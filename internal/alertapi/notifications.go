package alertapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type permissionBody struct {
	Enabled bool `json:"enabled"`
}

func (a *API) handleInbox(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.opts.Center.Inbox())
}

func (a *API) handleLastTapped(w http.ResponseWriter, _ *http.Request) {
	d, ok := a.opts.Center.LastTapped()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleTap returns the routing data the UI uses to open the alert screen.
func (a *API) handleTap(w http.ResponseWriter, r *http.Request) {
	data, err := a.opts.Center.Tap(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (a *API) handleGetPermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, permissionBody{Enabled: a.opts.Center.Enabled()})
}

func (a *API) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	var body permissionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	a.opts.Center.SetEnabled(body.Enabled)
	a.logger.Info(r.Context(), "notification permission changed", "enabled", body.Enabled)
	writeJSON(w, http.StatusOK, body)
}
