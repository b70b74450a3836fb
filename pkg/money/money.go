// Package money does currency arithmetic on decimal values and stores the
// result as two-place float64, the representation the document store keeps.
package money

import (
	"github.com/shopspring/decimal"
)

const places = 2

var hundred = decimal.NewFromInt(100)

func round(d decimal.Decimal) float64 {
	f, _ := d.Round(places).Float64()
	return f
}

// Sum adds amounts without accumulating binary floating point error.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return round(total)
}

// Sub returns a - b.
func Sub(a, b float64) float64 {
	return round(decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)))
}

// Percent returns pct percent of amount, rounded to cents.
func Percent(amount, pct float64) float64 {
	return round(decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(pct)).Div(hundred))
}

// Equal compares two amounts at cent precision.
func Equal(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(places).Equal(decimal.NewFromFloat(b).Round(places))
}

// Ratio returns part/whole*100 without rounding; zero when whole is zero.
func Ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Float64()
	return f
}

// Valid reports whether amount is non-negative and has at most two decimals.
func Valid(amount float64) bool {
	d := decimal.NewFromFloat(amount)
	return !d.IsNegative() && d.Equal(d.Round(places))
}
