package inventory

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewLayer opens a layer for an inbound move.
func NewLayer(move StockMove, lotCode string, expiresAt *time.Time, createdAt time.Time) StockLayer {
	return StockLayer{
		ID:           uuid.New(),
		ItemID:       move.ItemID,
		WarehouseID:  move.WarehouseID,
		OriginalQty:  move.Qty,
		RemainingQty: move.Qty,
		UnitCost:     move.UnitCost,
		LotCode:      lotCode,
		ExpiresAt:    expiresAt,
		SourceMoveID: move.ID,
		CreatedAt:    createdAt,
	}
}

// Decrement takes qty from the layer.
func (l *StockLayer) Decrement(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if qty.GreaterThan(l.RemainingQty) {
		return &OverConsumptionError{LayerID: l.ID, Requested: qty, Remaining: l.RemainingQty}
	}
	l.RemainingQty = l.RemainingQty.Sub(qty)
	return nil
}

// Available reports whether anything is left in the layer.
func (l StockLayer) Available() bool {
	return l.RemainingQty.IsPositive()
}

// Whole reports whether nothing has been taken from the layer.
func (l StockLayer) Whole() bool {
	return l.RemainingQty.Equal(l.OriginalQty)
}

// SortFEFO orders layers earliest expiry first, layers without expiry last,
// then oldest first. ID breaks remaining ties so the order is total.
func SortFEFO(layers []StockLayer) {
	sort.SliceStable(layers, func(i, j int) bool {
		a, b := layers[i], layers[j]
		switch {
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return true
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return false
		case a.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

func availableLayers(layers []StockLayer) []StockLayer {
	out := make([]StockLayer, 0, len(layers))
	for _, layer := range layers {
		if layer.Available() {
			out = append(out, layer)
		}
	}
	return out
}

func onHand(layers []StockLayer) decimal.Decimal {
	total := decimal.Zero
	for _, layer := range layers {
		total = total.Add(layer.RemainingQty)
	}
	return total
}
