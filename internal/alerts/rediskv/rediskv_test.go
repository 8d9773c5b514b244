package rediskv_test

import (
	"context"
	"os"
	"testing"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/alerts/rediskv"
)

func openStore(t *testing.T) *rediskv.Store {
	t.Helper()
	addr := os.Getenv("COINWATCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COINWATCH_TEST_REDIS_ADDR not set, skipping integration test")
	}
	client, err := rediskv.Connect(context.Background(), rediskv.Options{Addr: addr})
	if err != nil {
		t.Fatalf("rediskv.Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return rediskv.New(client, "coinwatch-test:")
}

func TestSetAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "set-get", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "set-get")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "v1" {
		t.Errorf("Get = %q (ok=%v), want v1", got, ok)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get(context.Background(), "missing-key-does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestBacksAlertStore(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	as := alerts.NewStore(s, nil, alerts.WithStorageKey("alert-store-roundtrip"))
	as.UpsertAlert(alerts.PriceAlert{ID: "a1", CoinID: "dogecoin", Direction: alerts.Below, TargetUSD: 0.05})
	if err := as.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded := alerts.NewStore(s, nil, alerts.WithStorageKey("alert-store-roundtrip"))
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.ActiveFor("dogecoin"); len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("ActiveFor = %+v, want [a1]", got)
	}
}
