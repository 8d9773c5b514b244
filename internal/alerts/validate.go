package alerts

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/coinwatch/internal/coins"
)

// sameTargetEpsilon is the tolerance under which two targets count as equal.
const sameTargetEpsilon = 1e-6

// User-facing messages.
const (
	MsgInvalidTarget = "Enter a valid USD target price."
	MsgDuplicate     = "Duplicate alert for this target."
)

var (
	// ErrDuplicate is returned when an alert with the same direction and
	// target already exists for the coin.
	ErrDuplicate = errors.New("duplicate alert for this target")

	// ErrAlertNotFound is returned when an edit names an alert that is not active.
	ErrAlertNotFound = errors.New("alert not found")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ParseTarget parses a user-entered USD amount. Grouping commas and any
// characters other than digits, '.', '-', 'e' and 'E' are stripped first, so
// "$1,234.50" parses as 1234.5. The result must be finite and positive.
func ParseTarget(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	cleaned = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == 'e', r == 'E':
			return r
		default:
			return -1
		}
	}, cleaned)
	if cleaned == "" {
		return 0, &ValidationError{Field: "target", Message: MsgInvalidTarget}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() {
		return 0, &ValidationError{Field: "target", Message: MsgInvalidTarget}
	}

	v := d.InexactFloat64()
	if math.IsInf(v, 0) || math.IsNaN(v) || v <= 0 {
		return 0, &ValidationError{Field: "target", Message: MsgInvalidTarget}
	}
	return v, nil
}

// validateRule checks the coin and direction of a save request.
func validateRule(coinID string, dir Direction) error {
	var errs []error
	if !coins.Known(coinID) {
		errs = append(errs, &ValidationError{Field: "coinId", Message: "unknown coin " + coinID})
	}
	if !dir.Valid() {
		errs = append(errs, &ValidationError{Field: "direction", Message: `direction must be "above" or "below"`})
	}
	return errors.Join(errs...)
}

// IsDuplicate reports whether active already holds an alert with the same
// direction and target, ignoring the alert with id editingID.
func IsDuplicate(active []PriceAlert, dir Direction, target float64, editingID string) bool {
	for _, a := range active {
		if editingID != "" && a.ID == editingID {
			continue
		}
		if a.Direction == dir && math.Abs(a.TargetUSD-target) < sameTargetEpsilon {
			return true
		}
	}
	return false
}
