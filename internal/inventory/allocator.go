package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/money"
)

// AllocationPart is the quantity taken from one layer. The shortfall part
// accepted under allowNegative has a nil LayerID and zero cost.
type AllocationPart struct {
	LayerID  uuid.UUID       `json:"layer_id"`
	Qty      decimal.Decimal `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Allocation is the priced plan for one outbound quantity.
type Allocation struct {
	Parts        []AllocationPart `json:"parts"`
	ConsumedQty  decimal.Decimal  `json:"consumed_qty"`
	Shortfall    decimal.Decimal  `json:"shortfall"`
	WeightedCost decimal.Decimal  `json:"weighted_cost"`
	AvgUnitCost  decimal.Decimal  `json:"avg_unit_cost"`
}

// LayerParts returns the parts backed by a layer.
func (a Allocation) LayerParts() []AllocationPart {
	out := make([]AllocationPart, 0, len(a.Parts))
	for _, part := range a.Parts {
		if part.LayerID != uuid.Nil {
			out = append(out, part)
		}
	}
	return out
}

// Allocate plans the consumption of requested base units from a snapshot of
// layers in FEFO order. It never mutates its input; the caller applies the
// plan inside its transaction.
func Allocate(layers []StockLayer, requested decimal.Decimal, allowNegative bool) (Allocation, error) {
	if !requested.IsPositive() {
		return Allocation{}, ErrInvalidQuantity
	}
	ordered := availableLayers(layers)
	SortFEFO(ordered)

	alloc := Allocation{
		ConsumedQty:  decimal.Zero,
		Shortfall:    decimal.Zero,
		WeightedCost: decimal.Zero,
		AvgUnitCost:  decimal.Zero,
	}
	remaining := requested
	for _, layer := range ordered {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(layer.RemainingQty, remaining)
		alloc.Parts = append(alloc.Parts, AllocationPart{LayerID: layer.ID, Qty: take, UnitCost: layer.UnitCost})
		alloc.WeightedCost = alloc.WeightedCost.Add(take.Mul(layer.UnitCost))
		alloc.ConsumedQty = alloc.ConsumedQty.Add(take)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		if !allowNegative {
			return Allocation{}, &InsufficientStockError{Requested: requested, Available: alloc.ConsumedQty}
		}
		alloc.Parts = append(alloc.Parts, AllocationPart{LayerID: uuid.Nil, Qty: remaining, UnitCost: decimal.Zero})
		alloc.ConsumedQty = alloc.ConsumedQty.Add(remaining)
		alloc.Shortfall = remaining
	}

	if alloc.ConsumedQty.IsPositive() {
		alloc.AvgUnitCost = money.Round2(alloc.WeightedCost.Div(alloc.ConsumedQty))
	}
	return alloc, nil
}
