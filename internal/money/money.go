// Package money holds the rounding rules shared by costing and posting.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// CostPlaces is the persisted precision of per-base-unit costs; it
	// matches decimal.DivisionPrecision.
	CostPlaces int32 = 16
	// QtyPlaces is the persisted precision of base-unit quantities.
	QtyPlaces int32 = 10

	epsilon = 2.220446049250313e-16
)

var half = decimal.New(5, -1)

// Round2 rounds half-up (towards +inf on a tie) to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

// Round2Float is the float boundary form of Round2. The epsilon bias absorbs
// binary representation error such as 1.005 being stored as 1.00499999.
func Round2Float(x float64) float64 {
	return math.Round((x+epsilon)*100) / 100
}

// Amount is the rounded monetary value of qty units at unitCost.
func Amount(qty, unitCost decimal.Decimal) decimal.Decimal {
	return Round2(qty.Abs().Mul(unitCost))
}

// Equal2 compares two amounts after rounding both.
func Equal2(a, b decimal.Decimal) bool {
	return Round2(a).Equal(Round2(b))
}

// RoundCost rounds a unit cost for persistence.
func RoundCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(CostPlaces)
}

// RoundQty rounds a base quantity for persistence.
func RoundQty(d decimal.Decimal) decimal.Decimal {
	return d.Round(QtyPlaces)
}

// Float converts for export surfaces such as metrics.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return Round2Float(f)
}
