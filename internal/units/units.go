// Package units converts quantities between units of measure of the same
// physical family.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Family groups units that can be converted into each other.
type Family string

const (
	FamilyCount  Family = "COUNT"
	FamilyWeight Family = "WEIGHT"
	FamilyVolume Family = "VOLUME"
	FamilyLength Family = "LENGTH"
	FamilyArea   Family = "AREA"
)

// Unit is a closed set of unit-of-measure codes.
type Unit string

const (
	Each    Unit = "UNIT"
	Pair    Unit = "PAIR"
	Dozen   Unit = "DOZEN"
	Hundred Unit = "HUNDRED"

	Milligram Unit = "MG"
	Gram      Unit = "G"
	Kilogram  Unit = "KG"
	Tonne     Unit = "TON"
	Pound     Unit = "LB"
	Ounce     Unit = "OZ"

	Millilitre  Unit = "ML"
	Centilitre  Unit = "CL"
	Litre       Unit = "L"
	CubicMetre  Unit = "M3"
	Gallon      Unit = "GAL"
	FluidOunce  Unit = "FLOZ"
	Millimetre  Unit = "MM"
	Centimetre  Unit = "CM"
	Metre       Unit = "M"
	Kilometre   Unit = "KM"
	Inch        Unit = "IN"
	Foot        Unit = "FT"
	SquareCM    Unit = "CM2"
	SquareMetre Unit = "M2"
	Hectare     Unit = "HA"
	SquareFoot  Unit = "FT2"
)

var (
	// ErrIncompatibleUnits indicates a conversion across unit families.
	ErrIncompatibleUnits = errors.New("units: incompatible unit families")
	// ErrUnknownUnit indicates a code missing from the unit table.
	ErrUnknownUnit = errors.New("units: unknown unit")
)

// IncompatibleUnitsError carries both sides of a rejected conversion.
type IncompatibleUnitsError struct {
	From       Unit
	To         Unit
	FromFamily Family
	ToFamily   Family
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("units: cannot convert %s (%s) to %s (%s)", e.From, e.FromFamily, e.To, e.ToFamily)
}

// Is lets errors.Is match ErrIncompatibleUnits.
func (e *IncompatibleUnitsError) Is(target error) bool {
	return target == ErrIncompatibleUnits
}

type definition struct {
	family Family
	// factor is the amount of the family base unit contained in one unit.
	factor decimal.Decimal
}

func def(family Family, factor string) definition {
	return definition{family: family, factor: decimal.RequireFromString(factor)}
}

var table = map[Unit]definition{
	Each:    def(FamilyCount, "1"),
	Pair:    def(FamilyCount, "2"),
	Dozen:   def(FamilyCount, "12"),
	Hundred: def(FamilyCount, "100"),

	Milligram: def(FamilyWeight, "0.001"),
	Gram:      def(FamilyWeight, "1"),
	Kilogram:  def(FamilyWeight, "1000"),
	Tonne:     def(FamilyWeight, "1000000"),
	Pound:     def(FamilyWeight, "453.59237"),
	Ounce:     def(FamilyWeight, "28.349523125"),

	Millilitre: def(FamilyVolume, "1"),
	Centilitre: def(FamilyVolume, "10"),
	Litre:      def(FamilyVolume, "1000"),
	CubicMetre: def(FamilyVolume, "1000000"),
	Gallon:     def(FamilyVolume, "3785.411784"),
	FluidOunce: def(FamilyVolume, "29.5735295625"),

	Millimetre: def(FamilyLength, "1"),
	Centimetre: def(FamilyLength, "10"),
	Metre:      def(FamilyLength, "1000"),
	Kilometre:  def(FamilyLength, "1000000"),
	Inch:       def(FamilyLength, "25.4"),
	Foot:       def(FamilyLength, "304.8"),

	SquareCM:    def(FamilyArea, "0.0001"),
	SquareMetre: def(FamilyArea, "1"),
	Hectare:     def(FamilyArea, "10000"),
	SquareFoot:  def(FamilyArea, "0.09290304"),
}

var aliases = map[string]Unit{
	"EA":          Each,
	"PC":          Each,
	"PCS":         Each,
	"UNITS":       Each,
	"GR":          Gram,
	"GRAM":        Gram,
	"GRAMS":       Gram,
	"KGS":         Kilogram,
	"KILOGRAM":    Kilogram,
	"T":           Tonne,
	"LBS":         Pound,
	"LITRE":       Litre,
	"LITER":       Litre,
	"LT":          Litre,
	"MILLILITRE":  Millilitre,
	"MILLILITER":  Millilitre,
	"METER":       Metre,
	"METRE":       Metre,
	"SQM":         SquareMetre,
	"M²":          SquareMetre,
	"SQFT":        SquareFoot,
	"CBM":         CubicMetre,
	"FL_OZ":       FluidOunce,
	"FL OZ":       FluidOunce,
	"HECTARE":     Hectare,
	"CENTIMETRE":  Centimetre,
	"CENTIMETER":  Centimetre,
	"MILLIMETRE":  Millimetre,
	"MILLIMETER":  Millimetre,
	"MILLIGRAM":   Milligram,
	"KILOMETRE":   Kilometre,
	"KILOMETER":   Kilometre,
	"GALLON":      Gallon,
	"GALLONS":     Gallon,
	"INCH":        Inch,
	"FEET":        Foot,
	"FOOT":        Foot,
	"OUNCE":       Ounce,
	"POUND":       Pound,
	"DOZ":         Dozen,
	"PAIRS":       Pair,
	"CENTILITRE":  Centilitre,
	"CUBIC METRE": CubicMetre,
}

// Parse normalises a user supplied unit code.
func Parse(raw string) (Unit, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrUnknownUnit)
	}
	if _, ok := table[Unit(code)]; ok {
		return Unit(code), nil
	}
	if u, ok := aliases[code]; ok {
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, raw)
}

// Valid reports whether the unit exists in the table.
func (u Unit) Valid() bool {
	_, ok := table[u]
	return ok
}

// Family returns the family of a known unit, or an empty Family.
func (u Unit) Family() Family {
	return table[u].family
}

func (u Unit) String() string { return string(u) }

// Valid reports whether f is one of the known families.
func (f Family) Valid() bool {
	switch f {
	case FamilyCount, FamilyWeight, FamilyVolume, FamilyLength, FamilyArea:
		return true
	}
	return false
}

// FamilyOf looks up the family for u.
func FamilyOf(u Unit) (Family, error) {
	d, ok := table[u]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return d.family, nil
}

// Factor returns how many family base units one u holds.
func Factor(u Unit) (decimal.Decimal, error) {
	d, ok := table[u]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return d.factor, nil
}

// SameFamily reports whether a and b convert into each other.
func SameFamily(a, b Unit) bool {
	da, okA := table[a]
	db, okB := table[b]
	return okA && okB && da.family == db.family
}

// UnitsOf lists every unit of a family.
func UnitsOf(f Family) []Unit {
	out := make([]Unit, 0, 6)
	for u, d := range table {
		if d.family == f {
			out = append(out, u)
		}
	}
	return out
}

// UnitFactor returns factor(from)/factor(to).
func UnitFactor(from, to Unit) (decimal.Decimal, error) {
	df, dt, err := pair(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	return df.factor.Div(dt.factor), nil
}

// Convert expresses qty of unit from in unit to.
func Convert(qty decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	df, dt, err := pair(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return qty, nil
	}
	return qty.Mul(df.factor).Div(dt.factor), nil
}

// ConvertUnitCost re-prices a cost per from-unit as a cost per to-unit.
func ConvertUnitCost(cost decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	df, dt, err := pair(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return cost, nil
	}
	return cost.Mul(dt.factor).Div(df.factor), nil
}

func pair(from, to Unit) (definition, definition, error) {
	df, ok := table[from]
	if !ok {
		return definition{}, definition{}, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	dt, ok := table[to]
	if !ok {
		return definition{}, definition{}, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if df.family != dt.family {
		return definition{}, definition{}, &IncompatibleUnitsError{From: from, To: to, FromFamily: df.family, ToFamily: dt.family}
	}
	return df, dt, nil
}
