package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Paise is a money amount in integer minor units (1 rupee = 100 paise).
// Arithmetic on Paise is exact; decimal conversion only happens at the
// JSON/display boundary.
type Paise int64

var paisePerRupee = decimal.NewFromInt(100)

// FromRupees converts a decimal rupee amount to Paise. Fails when the
// amount carries sub-paisa precision.
func FromRupees(d decimal.Decimal) (Paise, error) {
	p := d.Mul(paisePerRupee)
	if !p.Equal(p.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-paisa precision", d.String())
	}
	return Paise(p.IntPart()), nil
}

// ParseRupees parses a rupee string like "95000" or "95000.50".
func ParseRupees(s string) (Paise, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromRupees(d)
}

// Rupees returns the amount as a decimal rupee value.
func (p Paise) Rupees() decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Div(paisePerRupee)
}

// String formats the amount with two decimal places, e.g. "95000.00".
func (p Paise) String() string {
	return p.Rupees().StringFixed(2)
}

func (p Paise) IsNegative() bool { return p < 0 }

// MarshalJSON encodes the amount as a rupee string to keep clients away
// from binary floating point.
func (p Paise) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either a rupee string or a bare JSON number.
func (p *Paise) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Fall back to a bare number literal.
		d, derr := decimal.NewFromString(string(data))
		if derr != nil {
			return errors.New("amount must be a decimal string or number")
		}
		v, verr := FromRupees(d)
		if verr != nil {
			return verr
		}
		*p = v
		return nil
	}
	v, err := ParseRupees(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
