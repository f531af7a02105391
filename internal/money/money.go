package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a USD amount in fixed-point cents. All arithmetic on money happens
// on this type; decimal is only used at the edges (parsing external amounts,
// JSON display).
type Cents int64

var hundred = decimal.NewFromInt(100)

// FromDecimal rounds to the nearest cent.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).Round(0).IntPart())
}

// Parse accepts a decimal USD string such as "12.34".
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(hundred)
}

// String renders with 2-decimal display precision, e.g. "12.34".
func (c Cents) String() string { return c.Decimal().StringFixed(2) }

// MarshalJSON exposes the amount as a decimal JSON number.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.Decimal().StringFixed(2)), nil
}

func (c *Cents) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*c = FromDecimal(d)
	return nil
}
