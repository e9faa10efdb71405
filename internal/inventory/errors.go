package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientStock matches *InsufficientStockError.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrOverConsumption matches *OverConsumptionError.
	ErrOverConsumption = errors.New("inventory: layer over-consumption")
	// ErrInvalidQuantity indicates a zero, negative or unrepresentable quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative or missing unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrInvalidMoveType indicates a move type not allowed for the operation.
	ErrInvalidMoveType = errors.New("inventory: invalid move type")
	// ErrInvalidMoveStatus indicates a status transition that is not allowed.
	ErrInvalidMoveStatus = errors.New("inventory: invalid move status")
	// ErrNotReversible indicates a move that cannot be offset.
	ErrNotReversible = errors.New("inventory: move not reversible")
	// ErrUnsupportedMove indicates a single-move operation on a multi-move document.
	ErrUnsupportedMove = errors.New("inventory: operation not supported for move type")
	// ErrLayerConsumed indicates an inbound layer already drawn from.
	ErrLayerConsumed = errors.New("inventory: layer already consumed")
	// ErrInvalidComponent indicates a malformed production component.
	ErrInvalidComponent = errors.New("inventory: invalid production component")
	// ErrInvalidWarehouse indicates a missing or repeated warehouse.
	ErrInvalidWarehouse = errors.New("inventory: invalid warehouse")
	// ErrMoveNotFound indicates an unknown move id.
	ErrMoveNotFound = errors.New("inventory: move not found")
	// ErrLayerNotFound indicates an unknown layer id.
	ErrLayerNotFound = errors.New("inventory: layer not found")
)

// InsufficientStockError reports an outbound request the layers cannot cover.
type InsufficientStockError struct {
	ItemID      int64
	WarehouseID int64
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for item %d in warehouse %d: requested %s, available %s",
		e.ItemID, e.WarehouseID, e.Requested.String(), e.Available.String())
}

// Is lets errors.Is match ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// OverConsumptionError reports a decrement larger than the layer holds. It
// indicates a concurrency or allocation defect.
type OverConsumptionError struct {
	LayerID   uuid.UUID
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverConsumptionError) Error() string {
	return fmt.Sprintf("inventory: layer %s over-consumed: requested %s, remaining %s",
		e.LayerID, e.Requested.String(), e.Remaining.String())
}

// Is lets errors.Is match ErrOverConsumption.
func (e *OverConsumptionError) Is(target error) bool {
	return target == ErrOverConsumption
}
