package alerts

import (
	"errors"
	"testing"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"50000", 50000, false},
		{"1,234.50", 1234.5, false},
		{" $42,000 ", 42000, false},
		{"0.00001", 0.00001, false},
		{"1e3", 1000, false},
		{"", 0, true},
		{"   ", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
		{"1.2.3", 0, true},
		{"$", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want *ValidationError", err)
				}
				if ve.Field != "target" || ve.Message != MsgInvalidTarget {
					t.Errorf("ValidationError = %+v", ve)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	active := []PriceAlert{
		alert("a1", "bitcoin", Above, 50000),
		alert("b1", "bitcoin", Below, 40000),
	}

	tests := []struct {
		name      string
		dir       Direction
		target    float64
		editingID string
		want      bool
	}{
		{"same rule", Above, 50000, "", true},
		{"within epsilon", Above, 50000 + 5e-7, "", true},
		{"outside epsilon", Above, 50000.01, "", false},
		{"other direction", Below, 50000, "", false},
		{"editing self", Above, 50000, "a1", false},
		{"editing other", Above, 50000, "b1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsDuplicate(active, tt.dir, tt.target, tt.editingID); got != tt.want {
				t.Errorf("IsDuplicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRule(t *testing.T) {
	t.Parallel()

	if err := validateRule("bitcoin", Above); err != nil {
		t.Errorf("valid rule: %v", err)
	}

	err := validateRule("notacoin", Direction("up"))
	if err == nil {
		t.Fatal("expected error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "coinId" {
		t.Errorf("first ValidationError = %+v, want coinId", ve)
	}
}
