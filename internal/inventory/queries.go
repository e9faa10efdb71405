package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/money"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

// GetLayers lists the layers of an aggregate in FEFO order.
func (s *Service) GetLayers(ctx context.Context, key StockKey, includeDepleted bool) ([]StockLayer, error) {
	if key.ItemID <= 0 || key.WarehouseID <= 0 {
		return nil, fmt.Errorf("%w: item and warehouse required", shared.ErrInvalidArgument)
	}
	layers, err := s.repo.ListLayers(ctx, key, includeDepleted)
	if err != nil {
		return nil, err
	}
	SortFEFO(layers)
	return layers, nil
}

// GetMoves lists moves by date.
func (s *Service) GetMoves(ctx context.Context, filter MoveFilter) ([]StockMove, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: to before from", shared.ErrInvalidArgument)
	}
	return s.repo.ListMoves(ctx, filter)
}

// GetMove loads a move with its consumptions and the layers it opened.
func (s *Service) GetMove(ctx context.Context, id uuid.UUID) (MoveDetail, error) {
	move, err := s.repo.GetMove(ctx, id)
	if err != nil {
		return MoveDetail{}, err
	}
	consumptions, err := s.repo.ListConsumptions(ctx, id)
	if err != nil {
		return MoveDetail{}, err
	}
	layers, err := s.repo.LayersBySourceMove(ctx, id)
	if err != nil {
		return MoveDetail{}, err
	}
	return MoveDetail{Move: move, Consumptions: consumptions, Layers: layers}, nil
}

// StockCard renders the running history of an aggregate in a display unit.
// Concurrent requests for the same card share one load.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) (StockCard, error) {
	if filter.ItemID <= 0 || filter.WarehouseID <= 0 {
		return StockCard{}, fmt.Errorf("%w: item and warehouse required", shared.ErrInvalidArgument)
	}
	scope := cardScope(StockKey{ItemID: filter.ItemID, WarehouseID: filter.WarehouseID})
	key := fmt.Sprintf("%s:%s:%s", filter.Unit, timeKey(filter.From), timeKey(filter.To))
	v, err, _ := s.cards.Do(scope+":"+key, func() (any, error) {
		if s.cardCache == nil {
			return s.buildStockCard(ctx, filter)
		}
		var card StockCard
		err := s.cardCache.FetchJSON(ctx, scope, key, &card, func(ctx context.Context) (any, error) {
			return s.buildStockCard(ctx, filter)
		})
		return card, err
	})
	if err != nil {
		return StockCard{}, err
	}
	return v.(StockCard), nil
}

func cardScope(key StockKey) string {
	return fmt.Sprintf("card:%d:%d", key.ItemID, key.WarehouseID)
}

func (s *Service) buildStockCard(ctx context.Context, filter StockCardFilter) (StockCard, error) {
	item, err := s.item(ctx, filter.ItemID)
	if err != nil {
		return StockCard{}, err
	}
	unit := filter.Unit
	if unit == "" {
		unit = item.DisplayUnit
	}
	if _, err := units.UnitFactor(item.BaseUnit, unit); err != nil {
		return StockCard{}, err
	}
	moves, err := s.repo.ListMoves(ctx, MoveFilter{ItemID: filter.ItemID, WarehouseID: filter.WarehouseID, To: filter.To})
	if err != nil {
		return StockCard{}, err
	}
	sort.SliceStable(moves, func(i, j int) bool {
		if !moves[i].MoveDate.Equal(moves[j].MoveDate) {
			return moves[i].MoveDate.Before(moves[j].MoveDate)
		}
		return moves[i].CreatedAt.Before(moves[j].CreatedAt)
	})

	card := StockCard{ItemID: filter.ItemID, WarehouseID: filter.WarehouseID, Unit: unit, Entries: []StockCardEntry{}}
	balance, opening := decimal.Zero, decimal.Zero
	for _, move := range moves {
		if move.Status == MoveStatusDraft {
			continue
		}
		balance = balance.Add(move.Qty)
		if filter.From != nil && move.MoveDate.Before(*filter.From) {
			opening = balance
			continue
		}
		qty, err := units.Convert(move.Qty.Abs(), item.BaseUnit, unit)
		if err != nil {
			return StockCard{}, err
		}
		cost, err := units.ConvertUnitCost(move.UnitCost, item.BaseUnit, unit)
		if err != nil {
			return StockCard{}, err
		}
		running, err := units.Convert(balance, item.BaseUnit, unit)
		if err != nil {
			return StockCard{}, err
		}
		entry := StockCardEntry{
			MoveID:   move.ID,
			Type:     move.Type,
			Status:   move.Status,
			Date:     move.MoveDate,
			QtyIn:    decimal.Zero,
			QtyOut:   decimal.Zero,
			Balance:  money.RoundQty(running),
			UnitCost: money.RoundCost(cost),
			Amount:   money.Amount(move.Qty, move.UnitCost),
			Note:     move.Note,
		}
		if move.Inbound() {
			entry.QtyIn = money.RoundQty(qty)
		} else {
			entry.QtyOut = money.RoundQty(qty)
		}
		card.Entries = append(card.Entries, entry)
	}

	if card.Opening, err = units.Convert(opening, item.BaseUnit, unit); err != nil {
		return StockCard{}, err
	}
	if card.Closing, err = units.Convert(balance, item.BaseUnit, unit); err != nil {
		return StockCard{}, err
	}
	card.Opening = money.RoundQty(card.Opening)
	card.Closing = money.RoundQty(card.Closing)

	layers, err := s.repo.ListLayers(ctx, StockKey{ItemID: filter.ItemID, WarehouseID: filter.WarehouseID}, false)
	if err != nil {
		return StockCard{}, err
	}
	value := decimal.Zero
	for _, layer := range layers {
		value = value.Add(layer.RemainingQty.Mul(layer.UnitCost))
	}
	card.Value = money.Round2(value)
	return card, nil
}

// Reconcile checks layer conservation for one aggregate: what remains must
// equal what was received minus what layers gave out, and the move ledger
// must agree with both.
func (s *Service) Reconcile(ctx context.Context, key StockKey) (ReconcileReport, error) {
	totals, err := s.repo.StockTotals(ctx, key)
	if err != nil {
		return ReconcileReport{}, err
	}
	drift := totals.LayerRemaining.Sub(totals.LayerOriginal.Sub(totals.LayerConsumed))
	balanced := drift.IsZero() &&
		totals.MoveInbound.Equal(totals.LayerOriginal) &&
		totals.MoveOutbound.Sub(totals.Shortfall).Equal(totals.LayerConsumed)
	return ReconcileReport{
		Key:       key,
		Totals:    totals,
		Drift:     drift,
		Balanced:  balanced,
		CheckedAt: s.now().UTC(),
	}, nil
}

// ListStockKeys lists every aggregate that has moves.
func (s *Service) ListStockKeys(ctx context.Context) ([]StockKey, error) {
	return s.repo.ListStockKeys(ctx)
}

func timeKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
