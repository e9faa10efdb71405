package items

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

var (
	ErrNotFound         = errors.New("items: item not found")
	ErrDuplicateCode    = errors.New("items: duplicate item code")
	ErrValidation       = errors.New("items: validation failed")
	ErrImmutableUnit    = errors.New("items: base unit and unit kind cannot change")
	ErrUnitKindMismatch = errors.New("items: unit outside item unit kind")
)

// Validate checks required fields and unit family consistency.
func (it Item) Validate() error {
	if strings.TrimSpace(it.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !it.UnitKind.Valid() {
		return fmt.Errorf("%w: unit kind %q", ErrValidation, it.UnitKind)
	}
	for _, u := range []units.Unit{it.BaseUnit, it.DisplayUnit} {
		family, err := units.FamilyOf(u)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if family != it.UnitKind {
			return fmt.Errorf("%w: %s is %s, item is %s", ErrUnitKindMismatch, u, family, it.UnitKind)
		}
	}
	return nil
}

// normalize fills the display unit and unit kind from the base unit when omitted.
func (it Item) normalize() Item {
	it.Code = strings.TrimSpace(it.Code)
	it.Name = strings.TrimSpace(it.Name)
	if it.DisplayUnit == "" {
		it.DisplayUnit = it.BaseUnit
	}
	if it.UnitKind == "" {
		it.UnitKind = it.BaseUnit.Family()
	}
	return it
}
