package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrZeroReferencePrice is returned when a percentage is requested against a
// reference price of zero.
var ErrZeroReferencePrice = errors.New("reference price is zero")

// precisionGuard is the number of extra decimal places used to absorb binary
// floating point noise before digits are dropped.
const precisionGuard = 4

// RoundTo rounds v to the given number of decimal places, half away from zero.
func RoundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundUSD rounds a dollar amount to cents.
func RoundUSD(v float64) float64 {
	return RoundTo(v, 2)
}

// PercentChange returns round((current/reference - 1) * 100, 2).
func PercentChange(current, reference float64) (float64, error) {
	if reference == 0 {
		return 0, ErrZeroReferencePrice
	}
	return RoundTo((current/reference-1)*100, 2), nil
}

// PriceAtPercent returns current * (1 - pct/100), the price a reference is
// re-anchored to when it is adjusted at a threshold.
func PriceAtPercent(current, pct float64) float64 {
	return current * (1 - pct/100)
}

// DecimalPlaces returns floor(log10(1/minSize)), the number of decimal places
// an exchange accepts for an asset whose minimum order size is minSize.
func DecimalPlaces(minSize float64) (int32, error) {
	if minSize <= 0 || math.IsNaN(minSize) || math.IsInf(minSize, 0) {
		return 0, fmt.Errorf("invalid minimum order size %v", minSize)
	}
	return int32(math.Floor(math.Log10(1/minSize) + 1e-9)), nil
}

// TruncateToPlaces drops every digit past the given number of decimal places.
// The amount is first rounded at places+4 to absorb binary noise, so a value
// within half a unit of that guard digit below a boundary lands on it
// (1.2399999 keeps 1.24 at two places). Past that tolerance digits are cut,
// never rounded up, and negative amounts move toward zero.
func TruncateToPlaces(amount float64, places int32) float64 {
	d := decimal.NewFromFloat(amount)
	if places >= 0 {
		d = d.Round(places + precisionGuard).Truncate(places)
	} else {
		d = d.Shift(places).Truncate(0).Shift(-places)
	}
	f, _ := d.Float64()
	return f
}
