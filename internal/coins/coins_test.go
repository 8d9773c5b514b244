package coins

import "testing"

func TestCatalog_TenCoins(t *testing.T) {
	t.Parallel()

	if got := len(All()); got != 10 {
		t.Fatalf("len(All()) = %d, want 10", got)
	}
	ids := IDs()
	if ids[0] != "bitcoin" || ids[len(ids)-1] != "tron" {
		t.Errorf("IDs order = %v, want bitcoin first and tron last", ids)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	c, ok := Lookup("ethereum")
	if !ok {
		t.Fatal("expected ethereum in catalog")
	}
	if c.Symbol != "eth" {
		t.Errorf("Symbol = %q, want eth", c.Symbol)
	}
	if _, ok := Lookup("notacoin"); ok {
		t.Error("expected notacoin to be unknown")
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want string
	}{
		{"bitcoin", "Bitcoin (BTC)"},
		{"usd-coin", "USD Coin (USDC)"},
		{"binancecoin", "BNB (BNB)"},
		{"unknown-coin", "unknown-coin"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			if got := Label(tt.id); got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	t.Parallel()

	a := All()
	a[0].Name = "mutated"
	if c, _ := Lookup("bitcoin"); c.Name != "Bitcoin" {
		t.Errorf("catalog mutated through All(): %q", c.Name)
	}
	if All()[0].Name != "Bitcoin" {
		t.Error("All() must return a fresh copy")
	}
}
