package billing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// unlimitedLiteral is the wire form of an unbounded limit
const unlimitedLiteral = "unlimited"

// Limit is a usage ceiling for a metric. It is either a finite decimal or
// the unbounded variant; the zero value is a finite limit of 0.
type Limit struct {
	value     decimal.Decimal
	unbounded bool
}

// FiniteLimit creates a limit with the given ceiling
func FiniteLimit(value decimal.Decimal) Limit {
	return Limit{value: value}
}

// FiniteLimitInt creates a finite limit from an integer
func FiniteLimitInt(value int64) Limit {
	return Limit{value: decimal.NewFromInt(value)}
}

// Unbounded creates a limit that no usage can exceed
func Unbounded() Limit {
	return Limit{unbounded: true}
}

// IsUnbounded returns true for the unbounded variant
func (l Limit) IsUnbounded() bool {
	return l.unbounded
}

// Value returns the finite ceiling. ok is false for an unbounded limit.
func (l Limit) Value() (value decimal.Decimal, ok bool) {
	if l.unbounded {
		return decimal.Zero, false
	}
	return l.value, true
}

// Exceeds reports whether usage is above the limit and by how much
func (l Limit) Exceeds(usage decimal.Decimal) (decimal.Decimal, bool) {
	if l.unbounded || !usage.GreaterThan(l.value) {
		return decimal.Zero, false
	}
	return usage.Sub(l.value), true
}

// Equal compares two limits exactly
func (l Limit) Equal(other Limit) bool {
	if l.unbounded || other.unbounded {
		return l.unbounded == other.unbounded
	}
	return l.value.Equal(other.value)
}

// String returns "unlimited" or the decimal ceiling
func (l Limit) String() string {
	if l.unbounded {
		return unlimitedLiteral
	}
	return l.value.String()
}

// MarshalJSON encodes the limit as "unlimited" or a decimal string
func (l Limit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts "unlimited", a decimal string or a JSON number
func (l *Limit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid limit: %s", string(data))
		}
		s = n.String()
	}
	parsed, err := ParseLimit(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLimit parses "unlimited" or a non-negative decimal
func ParseLimit(s string) (Limit, error) {
	if s == unlimitedLiteral {
		return Unbounded(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Limit{}, fmt.Errorf("invalid limit: %s", s)
	}
	if d.IsNegative() {
		return Limit{}, fmt.Errorf("invalid limit: %s", s)
	}
	return FiniteLimit(d), nil
}
