package domain

import (
	"fmt"
	"math"
)

// Cents stores a monetary amount in integer cents to keep arithmetic exact.
// All commercial fields (prices, totals, shipping) use this representation;
// decimal dollars only appear at the JSON and payment-gateway boundaries.
type Cents int64

// CentsFromFloat converts a decimal dollar amount (as received in JSON) to
// cents, rounding half away from zero.
func CentsFromFloat(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Float returns the decimal dollar representation for JSON responses.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// String formats the amount with exactly two decimal places, the form the
// payment gateway expects in signed request fields (e.g. "17.97").
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
