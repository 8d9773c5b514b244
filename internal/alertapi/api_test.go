package alertapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/notify/local"
	"github.com/linnemanlabs/coinwatch/internal/pricefeed"
)

type stubPrices struct{ snap pricefeed.Snapshot }

func (s stubPrices) Latest() pricefeed.Snapshot { return s.snap }

type testEnv struct {
	router chi.Router
	svc    *alerts.Service
	center *local.Center
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	center := local.New(true, 10, log.Nop())
	store := alerts.NewStore(nil, log.Nop())
	svc := alerts.NewService(store, nil, center, log.Nop(), alerts.ServiceHooks{})
	t.Cleanup(svc.Wait)

	api := New(nil, svc, Options{
		Center: center,
		Prices: stubPrices{snap: pricefeed.Snapshot{Prices: alerts.Prices{"bitcoin": 42}, UpdatedAt: time.Unix(1700000000, 0).UTC()}},
	})
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return &testEnv{router: r, svc: svc, center: center}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	svc := alerts.NewService(alerts.NewStore(nil, nil), nil, nil, nil, alerts.ServiceHooks{})
	api := New(nil, svc, Options{})
	if api == nil || api.logger == nil {
		t.Fatal("New(nil, svc) left logger nil; expected Nop logger")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil, Options{})
}

func TestRegisterRoutes_OptionalCollaborators(t *testing.T) {
	t.Parallel()

	svc := alerts.NewService(alerts.NewStore(nil, nil), nil, nil, nil, alerts.ServiceHooks{})
	r := chi.NewRouter()
	New(nil, svc, Options{}).RegisterRoutes(r)

	for _, path := range []string{"/api/v1/prices", "/api/v1/notifications"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d, want route absent", path, rec.Code)
		}
	}
}

// Alerts

func TestListCoins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/coins", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[[]map[string]any](t, rec)
	if len(got) != 10 || got[0]["id"] != "bitcoin" {
		t.Errorf("coins = %v", got)
	}
}

func TestSaveAlert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		coin       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"string target", "bitcoin", `{"direction":"above","target":"$50,000"}`, http.StatusCreated, ""},
		{"number target", "bitcoin", `{"direction":"below","target":42000.5}`, http.StatusCreated, ""},
		{"upper-case direction", "bitcoin", `{"direction":"ABOVE","target":"1"}`, http.StatusCreated, ""},
		{"bad target", "bitcoin", `{"direction":"above","target":"abc"}`, http.StatusBadRequest, "target"},
		{"zero target", "bitcoin", `{"direction":"above","target":0}`, http.StatusBadRequest, "target"},
		{"bad direction", "bitcoin", `{"direction":"sideways","target":"1"}`, http.StatusBadRequest, "direction"},
		{"unknown coin", "notacoin", `{"direction":"above","target":"1"}`, http.StatusBadRequest, "coinId"},
		{"invalid json", "bitcoin", `{bad`, http.StatusBadRequest, ""},
		{"target wrong type", "bitcoin", `{"direction":"above","target":true}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/v1/coins/"+tt.coin+"/alerts", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantField != "" {
				body := decode[errorBody](t, rec)
				if body.Field != tt.wantField || body.Error == "" {
					t.Errorf("error body = %+v, want field %q", body, tt.wantField)
				}
			}
		})
	}
}

func TestSaveAlert_DuplicateAndEdit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/coins/ethereum/alerts", `{"direction":"above","target":"3000"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode[alerts.SaveResult](t, rec)
	if created.Message != "Alert created successfully!" {
		t.Errorf("message = %q", created.Message)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/coins/ethereum/alerts", `{"direction":"above","target":"3,000.00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Error != alerts.MsgDuplicate {
		t.Errorf("duplicate error = %q", body.Error)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/coins/ethereum/alerts",
		`{"direction":"above","target":"3100","editingId":"`+created.Alert.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d", rec.Code)
	}
	edited := decode[alerts.SaveResult](t, rec)
	if edited.Alert.ID != created.Alert.ID || edited.Outcome != alerts.OutcomeUpdated {
		t.Errorf("edited = %+v", edited)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/coins/ethereum/alerts", `{"direction":"above","target":"1","editingId":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("edit unknown status = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/coins/ethereum/alerts", "")
	list := decode[[]alerts.PriceAlert](t, rec)
	if len(list) != 1 || list[0].TargetUSD != 3100 {
		t.Errorf("active = %+v", list)
	}
}

func TestListCoinAlerts_UnknownCoin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/coins/notacoin/alerts", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRemoveAlert(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res, err := env.svc.SaveAlert(context.Background(), alerts.SaveRequest{CoinID: "solana", Direction: alerts.Below, Target: "100"})
	if err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	rec := env.do(t, http.MethodDelete, "/api/v1/coins/solana/alerts/"+res.Alert.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := env.svc.Store().ActiveFor("solana"); len(got) != 0 {
		t.Errorf("active after delete = %+v", got)
	}

	// Removing again is a no-op.
	if rec := env.do(t, http.MethodDelete, "/api/v1/coins/solana/alerts/"+res.Alert.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d", rec.Code)
	}
}

// Prices and triggered history

func TestPushPrices_TriggersAndHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.svc.SaveAlert(context.Background(), alerts.SaveRequest{CoinID: "bitcoin", Direction: alerts.Above, Target: "100"}); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/prices", `{"bitcoin":150}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[alerts.ObserveResult](t, rec)
	if len(res.Triggered) != 1 || res.Triggered[0].TriggerPriceUSD != 150 {
		t.Fatalf("observe result = %+v", res)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/prices", `{"bitcoin":150}`)
	if res := decode[alerts.ObserveResult](t, rec); !res.Skipped || res.Reason != alerts.ReasonDuplicate {
		t.Errorf("repeat snapshot = %+v, want skipped duplicate", res)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/alerts/unread-count", "")
	if got := decode[unreadCountResponse](t, rec); got.Unread != 1 {
		t.Errorf("unread = %d, want 1", got.Unread)
	}

	histID := res.Triggered[0].ID
	if rec := env.do(t, http.MethodPost, "/api/v1/triggered/"+histID+"/read", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("mark read status = %d", rec.Code)
	}
	if got := env.svc.Store().UnreadCount(); got != 0 {
		t.Errorf("unread after mark = %d", got)
	}

	// Read entries survive clearing unread; clearing all removes them.
	env.do(t, http.MethodDelete, "/api/v1/triggered/unread", "")
	if got := env.svc.Store().Triggered(); len(got) != 1 {
		t.Errorf("history after clear unread = %d, want 1", len(got))
	}
	env.do(t, http.MethodDelete, "/api/v1/triggered", "")
	rec = env.do(t, http.MethodGet, "/api/v1/triggered", "")
	if got := decode[[]alerts.TriggeredAlert](t, rec); len(got) != 0 {
		t.Errorf("history after clear all = %d, want 0", len(got))
	}

	rec = env.do(t, http.MethodGet, "/api/v1/alerts", "")
	st := decode[alerts.State](t, rec)
	if len(st.ActiveAlerts) != 0 {
		t.Errorf("active after trigger = %+v", st.ActiveAlerts)
	}
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.svc.Store().AddTriggered([]alerts.TriggeredAlert{
		{CoinID: "bitcoin", Direction: alerts.Above},
		{CoinID: "ethereum", Direction: alerts.Below},
	})

	if rec := env.do(t, http.MethodPost, "/api/v1/triggered/read-all", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := env.svc.Store().UnreadCount(); got != 0 {
		t.Errorf("unread = %d, want 0", got)
	}
}

func TestPushPrices_InvalidJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if rec := env.do(t, http.MethodPost, "/api/v1/prices", `[1,2]`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLatestPrices(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/prices", "")
	got := decode[pricefeed.Snapshot](t, rec)
	if got.Prices["bitcoin"] != 42 {
		t.Errorf("prices = %+v", got)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := `{"active":[
		{"id":"a","coinId":"bitcoin","direction":"above","targetUsd":100},
		{"id":"b","coinId":"bitcoin","direction":"below","targetUsd":50}
	],"prices":{"bitcoin":100}}`

	rec := env.do(t, http.MethodPost, "/api/v1/evaluate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	ev := decode[alerts.Evaluation](t, rec)
	if len(ev.Triggered) != 1 || ev.Triggered[0].AlertID != "a" {
		t.Errorf("triggered = %+v", ev.Triggered)
	}
	if len(ev.Remaining) != 1 || ev.Remaining[0].ID != "b" {
		t.Errorf("remaining = %+v", ev.Remaining)
	}
	if got := env.svc.Store().ActiveAlerts(); len(got) != 0 {
		t.Error("evaluate must not touch the store")
	}
}

func TestTestTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCoin   string
	}{
		{"named coin", `{"coinId":"dogecoin"}`, http.StatusCreated, "dogecoin"},
		{"random coin", "", http.StatusCreated, ""},
		{"unknown coin", `{"coinId":"notacoin"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/v1/test-trigger", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}
			got := decode[alerts.TriggeredAlert](t, rec)
			if tt.wantCoin != "" && got.CoinID != tt.wantCoin {
				t.Errorf("coin = %q, want %q", got.CoinID, tt.wantCoin)
			}
			if len(env.svc.Store().Triggered()) != 1 {
				t.Error("synthetic trigger not recorded")
			}
		})
	}
}

// Notifications

func TestNotifications_DeliverAndTap(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.svc.TestTrigger(context.Background(), "cardano"); err != nil {
		t.Fatalf("TestTrigger: %v", err)
	}
	env.svc.Wait()

	if rec := env.do(t, http.MethodGet, "/api/v1/notifications/last-tapped", ""); rec.Code != http.StatusNoContent {
		t.Errorf("last-tapped before tap = %d, want 204", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/notifications", "")
	inbox := decode[[]local.Delivered](t, rec)
	if len(inbox) != 1 {
		t.Fatalf("inbox = %+v", inbox)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/notifications/"+inbox[0].ID+"/tap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tap status = %d", rec.Code)
	}
	data := decode[alerts.NotificationData](t, rec)
	if data.Screen != alerts.ScreenAlerts || data.CoinID != "cardano" {
		t.Errorf("routing data = %+v", data)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/notifications/last-tapped", "")
	if got := decode[local.Delivered](t, rec); got.ID != inbox[0].ID || got.TappedAt == nil {
		t.Errorf("last tapped = %+v", got)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/notifications/missing/tap", ""); rec.Code != http.StatusNotFound {
		t.Errorf("tap unknown = %d, want 404", rec.Code)
	}
}

func TestNotifications_Permission(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/notifications/permission", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.center.Enabled() {
		t.Error("center still enabled")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/notifications/permission", "")
	if got := decode[permissionBody](t, rec); got.Enabled {
		t.Error("permission reported enabled")
	}

	if rec := env.do(t, http.MethodPut, "/api/v1/notifications/permission", `nope`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestTargetInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"$1,250.50"`, "$1,250.50", false},
		{`1250.5`, "1250.5", false},
		{`null`, "", false},
		{`[1]`, "", true},
	}
	for _, tt := range tests {
		var got targetInput
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
