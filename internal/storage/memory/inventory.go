package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

type inventoryRepo struct {
	store *Store
}

func (r *inventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.store.update(func(st *state) error {
		return fn(ctx, &inventoryTx{st: st, now: r.store.now})
	})
}

func (r *inventoryRepo) ListLayers(_ context.Context, key inventory.StockKey, includeDepleted bool) ([]inventory.StockLayer, error) {
	var out []inventory.StockLayer
	err := r.store.view(func(st *state) error {
		for _, id := range st.layerOrder {
			layer := st.layers[id]
			if layer.ItemID != key.ItemID || layer.WarehouseID != key.WarehouseID {
				continue
			}
			if !includeDepleted && !layer.Available() {
				continue
			}
			out = append(out, layer)
		}
		return nil
	})
	return out, err
}

func (r *inventoryRepo) LayersBySourceMove(_ context.Context, moveID uuid.UUID) ([]inventory.StockLayer, error) {
	var out []inventory.StockLayer
	err := r.store.view(func(st *state) error {
		out = layersBySource(st, moveID)
		return nil
	})
	return out, err
}

func (r *inventoryRepo) ListMoves(_ context.Context, filter inventory.MoveFilter) ([]inventory.StockMove, error) {
	var out []inventory.StockMove
	err := r.store.view(func(st *state) error {
		for _, id := range st.moveOrder {
			move := st.moves[id]
			if matchMove(move, filter) {
				out = append(out, move)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].MoveDate.Equal(out[j].MoveDate) {
			return out[i].MoveDate.Before(out[j].MoveDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, err
}

func matchMove(move inventory.StockMove, filter inventory.MoveFilter) bool {
	if filter.ItemID != 0 && move.ItemID != filter.ItemID {
		return false
	}
	if filter.WarehouseID != 0 && move.WarehouseID != filter.WarehouseID {
		return false
	}
	if filter.From != nil && move.MoveDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && move.MoveDate.After(*filter.To) {
		return false
	}
	if len(filter.Types) > 0 && !slices.Contains(filter.Types, move.Type) {
		return false
	}
	return true
}

func (r *inventoryRepo) GetMove(_ context.Context, id uuid.UUID) (inventory.StockMove, error) {
	var move inventory.StockMove
	err := r.store.view(func(st *state) error {
		var ok bool
		if move, ok = st.moves[id]; !ok {
			return inventory.ErrMoveNotFound
		}
		return nil
	})
	return move, err
}

func (r *inventoryRepo) ListConsumptions(_ context.Context, moveID uuid.UUID) ([]inventory.StockConsumption, error) {
	var out []inventory.StockConsumption
	err := r.store.view(func(st *state) error {
		out = consumptionsOf(st, moveID)
		return nil
	})
	return out, err
}

func (r *inventoryRepo) StockTotals(_ context.Context, key inventory.StockKey) (inventory.StockTotals, error) {
	totals := inventory.StockTotals{
		LayerOriginal:  decimal.Zero,
		LayerRemaining: decimal.Zero,
		LayerConsumed:  decimal.Zero,
		MoveInbound:    decimal.Zero,
		MoveOutbound:   decimal.Zero,
		Shortfall:      decimal.Zero,
	}
	err := r.store.view(func(st *state) error {
		layerIDs := make(map[uuid.UUID]struct{})
		for _, layer := range st.layers {
			if layer.ItemID != key.ItemID || layer.WarehouseID != key.WarehouseID {
				continue
			}
			layerIDs[layer.ID] = struct{}{}
			totals.LayerOriginal = totals.LayerOriginal.Add(layer.OriginalQty)
			totals.LayerRemaining = totals.LayerRemaining.Add(layer.RemainingQty)
		}
		for _, c := range st.consumptions {
			if _, ok := layerIDs[c.LayerID]; ok {
				totals.LayerConsumed = totals.LayerConsumed.Add(c.Qty)
			}
		}
		for _, move := range st.moves {
			if move.ItemID != key.ItemID || move.WarehouseID != key.WarehouseID || move.Status == inventory.MoveStatusDraft {
				continue
			}
			if move.Inbound() {
				totals.MoveInbound = totals.MoveInbound.Add(move.Qty)
			} else {
				totals.MoveOutbound = totals.MoveOutbound.Add(move.Qty.Abs())
				totals.Shortfall = totals.Shortfall.Add(move.Shortfall)
			}
		}
		return nil
	})
	return totals, err
}

func (r *inventoryRepo) ListStockKeys(_ context.Context) ([]inventory.StockKey, error) {
	var out []inventory.StockKey
	err := r.store.view(func(st *state) error {
		seen := make(map[inventory.StockKey]struct{})
		for _, id := range st.moveOrder {
			key := st.moves[id].Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, err
}

type inventoryTx struct {
	st  *state
	now func() time.Time
}

func (tx *inventoryTx) InsertMove(_ context.Context, move inventory.StockMove) error {
	if _, exists := tx.st.moves[move.ID]; exists {
		return fmt.Errorf("memory: duplicate move %s", move.ID)
	}
	if move.UnitCost.IsNegative() {
		return inventory.ErrInvalidUnitCost
	}
	tx.st.moves[move.ID] = move
	tx.st.moveOrder = append(tx.st.moveOrder, move.ID)
	return nil
}

func (tx *inventoryTx) UpdateMove(_ context.Context, move inventory.StockMove) error {
	if _, exists := tx.st.moves[move.ID]; !exists {
		return inventory.ErrMoveNotFound
	}
	tx.st.moves[move.ID] = move
	return nil
}

func (tx *inventoryTx) GetMoveForUpdate(_ context.Context, id uuid.UUID) (inventory.StockMove, error) {
	move, ok := tx.st.moves[id]
	if !ok {
		return inventory.StockMove{}, inventory.ErrMoveNotFound
	}
	return move, nil
}

func (tx *inventoryTx) InsertLayer(_ context.Context, layer inventory.StockLayer) error {
	if _, ok := tx.st.moves[layer.SourceMoveID]; !ok {
		return fmt.Errorf("memory: layer %s references unknown move %s", layer.ID, layer.SourceMoveID)
	}
	if !layer.OriginalQty.IsPositive() || layer.RemainingQty.IsNegative() || layer.RemainingQty.GreaterThan(layer.OriginalQty) {
		return fmt.Errorf("memory: layer %s quantities out of range", layer.ID)
	}
	tx.st.layers[layer.ID] = layer
	tx.st.layerOrder = append(tx.st.layerOrder, layer.ID)
	return nil
}

func (tx *inventoryTx) ListAvailableLayersForUpdate(_ context.Context, key inventory.StockKey) ([]inventory.StockLayer, error) {
	var out []inventory.StockLayer
	for _, id := range tx.st.layerOrder {
		layer := tx.st.layers[id]
		if layer.ItemID == key.ItemID && layer.WarehouseID == key.WarehouseID && layer.Available() {
			out = append(out, layer)
		}
	}
	inventory.SortFEFO(out)
	return out, nil
}

func (tx *inventoryTx) GetLayerForUpdate(_ context.Context, id uuid.UUID) (inventory.StockLayer, error) {
	layer, ok := tx.st.layers[id]
	if !ok {
		return inventory.StockLayer{}, inventory.ErrLayerNotFound
	}
	return layer, nil
}

func (tx *inventoryTx) DecrementLayer(_ context.Context, id uuid.UUID, qty decimal.Decimal) error {
	layer, ok := tx.st.layers[id]
	if !ok {
		return inventory.ErrLayerNotFound
	}
	if err := layer.Decrement(qty); err != nil {
		return err
	}
	tx.st.layers[id] = layer
	return nil
}

func (tx *inventoryTx) LayersBySourceMove(_ context.Context, moveID uuid.UUID) ([]inventory.StockLayer, error) {
	return layersBySource(tx.st, moveID), nil
}

func (tx *inventoryTx) InsertConsumptions(_ context.Context, consumptions []inventory.StockConsumption) error {
	for _, c := range consumptions {
		if _, ok := tx.st.moves[c.MoveID]; !ok {
			return fmt.Errorf("memory: consumption references unknown move %s", c.MoveID)
		}
		if !c.Shortfall() {
			if _, ok := tx.st.layers[c.LayerID]; !ok {
				return inventory.ErrLayerNotFound
			}
		}
	}
	tx.st.consumptions = append(tx.st.consumptions, consumptions...)
	return nil
}

func (tx *inventoryTx) ListConsumptions(_ context.Context, moveID uuid.UUID) ([]inventory.StockConsumption, error) {
	return consumptionsOf(tx.st, moveID), nil
}

func (tx *inventoryTx) ClaimIdempotencyKey(_ context.Context, key, module string) error {
	scoped := module + ":" + key
	if _, exists := tx.st.idempotency[scoped]; exists {
		return shared.ErrIdempotencyConflict
	}
	tx.st.idempotency[scoped] = tx.now()
	return nil
}

func (tx *inventoryTx) Ledger() accounting.TxRepository {
	return &ledgerTx{st: tx.st}
}

func layersBySource(st *state, moveID uuid.UUID) []inventory.StockLayer {
	var out []inventory.StockLayer
	for _, id := range st.layerOrder {
		if layer := st.layers[id]; layer.SourceMoveID == moveID {
			out = append(out, layer)
		}
	}
	return out
}

func consumptionsOf(st *state, moveID uuid.UUID) []inventory.StockConsumption {
	var out []inventory.StockConsumption
	for _, c := range st.consumptions {
		if c.MoveID == moveID {
			out = append(out, c)
		}
	}
	return out
}
