package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linnemanlabs/go-core/log"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/coinwatch/internal/alerts/pgkv.(*Store).Get", "(*Store).Get"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgkv.(*Store).Get", "(*Store).Get"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := shortenFuncName(tt.in)
			if got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOperationName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  string
		sql  string
		want string
	}{
		{"from tag", "INSERT 0 1", "insert into kv", "INSERT"},
		{"from sql", "", "  select value from kv", "SELECT"},
		{"nothing", "", "", "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := operationName(tt.tag, tt.sql); got != tt.want {
				t.Errorf("operationName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeArgs(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", maxLoggedArgBytes+10)
	got := summarizeArgs([]any{"alerts-store-v4", []byte(big), 42})

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != "alerts-store-v4" {
		t.Errorf("got[0] = %q", got[0])
	}
	if !strings.HasSuffix(got[1], "...(138 bytes)") || len(got[1]) > maxLoggedArgBytes+20 {
		t.Errorf("got[1] = %q, want truncated blob", got[1])
	}
	if got[2] != "42" {
		t.Errorf("got[2] = %q, want 42", got[2])
	}
}

func TestCompactSQL(t *testing.T) {
	t.Parallel()

	in := "INSERT INTO kv (key, value)\n\t\tVALUES ($1, $2)"
	if got := compactSQL(in); got != "INSERT INTO kv (key, value) VALUES ($1, $2)" {
		t.Errorf("compactSQL = %q", got)
	}
}

func TestSetQueryObserver(t *testing.T) {
	// Not parallel: swaps the package-level observer.
	defer SetQueryObserver(nil)

	called := false
	obs := QueryObserverFunc(func(_ context.Context, _, _ string, _ time.Duration) {
		called = true
	})

	SetQueryObserver(obs)
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "SELECT", "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	if got := getQueryObserver(); got != nil {
		t.Errorf("expected nil observer after Set(nil), got %v", got)
	}
}

func TestLoggingTracer_ObservesQuery(t *testing.T) {
	// Not parallel: swaps the package-level observer.
	defer SetQueryObserver(nil)

	var gotOp, gotOutcome string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, op, outcome string, _ time.Duration) {
		gotOp, gotOutcome = op, outcome
	}))

	tr := wrapQueryTracer(nil)
	ctx := tr.TraceQueryStart(log.WithContext(context.Background(), log.Nop()), nil, pgx.TraceQueryStartData{
		SQL:  "SELECT value FROM kv WHERE key = $1",
		Args: []any{"alerts-store-v4"},
	})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{
		CommandTag: pgconn.NewCommandTag("SELECT 1"),
		Err:        errors.New("conn closed"),
	})

	if gotOp != "SELECT" || gotOutcome != "error" {
		t.Errorf("observed op=%q outcome=%q, want SELECT/error", gotOp, gotOutcome)
	}
}
