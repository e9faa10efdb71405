package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/money"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

// RecordInbound receives stock and opens a layer priced per base unit.
func (s *Service) RecordInbound(ctx context.Context, input InboundInput) (MoveResult, error) {
	if input.WarehouseID <= 0 {
		return MoveResult{}, ErrInvalidWarehouse
	}
	moveType := input.Type
	if moveType == "" {
		moveType = MoveTypePurchase
	}
	if !moveType.Valid() || moveType == MoveTypeTransfer || moveType == MoveTypeProduction {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrInvalidMoveType, moveType)
	}
	item, err := s.item(ctx, input.ItemID)
	if err != nil {
		return MoveResult{}, err
	}
	qtyBase, unit, err := toBase(item, input.Qty, input.Unit)
	if err != nil {
		return MoveResult{}, err
	}
	costBase, err := costToBase(item, input.UnitCost, unit)
	if err != nil {
		return MoveResult{}, err
	}

	key := StockKey{ItemID: item.ID, WarehouseID: input.WarehouseID}
	var result MoveResult
	err = s.write(ctx, []StockKey{key}, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		move := s.newMove(item.ID, input.WarehouseID, moveType, input.MoveDate, actor(ctx, input.ActorID))
		move.Qty = qtyBase
		move.UnitCost = costBase
		move.InputQty = input.Qty
		move.InputUnit = unit
		move.RefType, move.RefID, move.Note = input.RefType, input.RefID, input.Note

		res, err := s.receive(ctx, tx, move, input.LotCode, input.ExpiresAt)
		if err != nil {
			return err
		}
		if res.Journal, err = s.postMove(ctx, tx, input.Posting, move, item); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	s.committed(ctx, moveAction(moveType), result.Move)
	return result, nil
}

// RecordOutbound issues stock in FEFO order and prices the move at the
// rounded weighted average of the layers it drew from.
func (s *Service) RecordOutbound(ctx context.Context, input OutboundInput) (MoveResult, error) {
	if input.WarehouseID <= 0 {
		return MoveResult{}, ErrInvalidWarehouse
	}
	moveType := input.Type
	if moveType == "" {
		moveType = MoveTypeSale
	}
	if !moveType.Valid() || moveType == MoveTypeTransfer || moveType == MoveTypeProduction {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrInvalidMoveType, moveType)
	}
	item, err := s.item(ctx, input.ItemID)
	if err != nil {
		return MoveResult{}, err
	}
	qtyBase, unit, err := toBase(item, input.Qty, input.Unit)
	if err != nil {
		return MoveResult{}, err
	}
	allowNegative := s.allowNegative(item, input.AllowNegative)

	key := StockKey{ItemID: item.ID, WarehouseID: input.WarehouseID}
	var result MoveResult
	err = s.write(ctx, []StockKey{key}, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		move := s.newMove(item.ID, input.WarehouseID, moveType, input.MoveDate, actor(ctx, input.ActorID))
		move.InputQty = input.Qty
		move.InputUnit = unit
		move.RefType, move.RefID, move.Note = input.RefType, input.RefID, input.Note

		out, err := s.issue(ctx, tx, move, qtyBase, allowNegative, true)
		if err != nil {
			return err
		}
		res := out.result
		if res.Journal, err = s.postMove(ctx, tx, input.Posting, res.Move, item); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	s.metrics.LayersConsumed(len(result.Consumptions))
	s.committed(ctx, moveAction(moveType), result.Move)
	return result, nil
}

// RecordAdjustment corrects stock by a signed quantity. A draft is saved
// without touching layers and posted later with PostDraft.
func (s *Service) RecordAdjustment(ctx context.Context, input AdjustmentInput) (MoveResult, error) {
	if input.WarehouseID <= 0 {
		return MoveResult{}, ErrInvalidWarehouse
	}
	if input.Qty.IsZero() {
		return MoveResult{}, ErrInvalidQuantity
	}
	item, err := s.item(ctx, input.ItemID)
	if err != nil {
		return MoveResult{}, err
	}
	inbound := input.Qty.IsPositive()
	qtyBase, unit, err := toBase(item, input.Qty.Abs(), input.Unit)
	if err != nil {
		return MoveResult{}, err
	}
	var costBase *decimal.Decimal
	if input.UnitCost != nil {
		cost, err := costToBase(item, *input.UnitCost, unit)
		if err != nil {
			return MoveResult{}, err
		}
		costBase = &cost
	}
	allowNegative := s.allowNegative(item, input.AllowNegative)

	key := StockKey{ItemID: item.ID, WarehouseID: input.WarehouseID}
	var result MoveResult
	err = s.write(ctx, []StockKey{key}, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		move := s.newMove(item.ID, input.WarehouseID, MoveTypeAdjustment, input.MoveDate, actor(ctx, input.ActorID))
		move.InputQty = input.Qty
		move.InputUnit = unit
		move.RefType, move.RefID, move.Note = input.RefType, input.RefID, input.Note

		if inbound {
			cost, err := s.adjustmentCost(ctx, tx, key, costBase)
			if err != nil {
				return err
			}
			move.Qty = qtyBase
			move.UnitCost = cost
		}

		if input.Draft {
			if !inbound {
				move.Qty = qtyBase.Neg()
			}
			move.Status = MoveStatusDraft
			move.PostedAt = nil
			result = MoveResult{Move: move}
			return tx.InsertMove(ctx, move)
		}

		var res MoveResult
		if inbound {
			if res, err = s.receive(ctx, tx, move, "", nil); err != nil {
				return err
			}
		} else {
			out, err := s.issue(ctx, tx, move, qtyBase, allowNegative, true)
			if err != nil {
				return err
			}
			res = out.result
		}
		if res.Journal, err = s.postMove(ctx, tx, input.Posting, res.Move, item); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	action := moveAction(MoveTypeAdjustment)
	if input.Draft {
		action += ".draft"
	}
	s.committed(ctx, action, result.Move)
	return result, nil
}

// adjustmentCost prices a positive adjustment at the given cost or, when
// none was given, at the current average of what is on hand.
func (s *Service) adjustmentCost(ctx context.Context, tx TxRepository, key StockKey, given *decimal.Decimal) (decimal.Decimal, error) {
	if given != nil {
		return *given, nil
	}
	layers, err := tx.ListAvailableLayersForUpdate(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	avg, ok := averageCost(layers)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unit cost required when nothing is on hand", ErrInvalidUnitCost)
	}
	return avg, nil
}

// PostDraft applies a DRAFT adjustment to the layers and posts its journal.
func (s *Service) PostDraft(ctx context.Context, moveID uuid.UUID, input PostDraftInput) (MoveResult, error) {
	draft, err := s.repo.GetMove(ctx, moveID)
	if err != nil {
		return MoveResult{}, err
	}
	if draft.Status != MoveStatusDraft {
		return MoveResult{}, fmt.Errorf("%w: move %s is %s", ErrInvalidMoveStatus, moveID, draft.Status)
	}
	item, err := s.item(ctx, draft.ItemID)
	if err != nil {
		return MoveResult{}, err
	}
	allowNegative := s.allowNegative(item, input.AllowNegative)

	var result MoveResult
	err = s.write(ctx, []StockKey{draft.Key()}, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		move, err := tx.GetMoveForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if move.Status != MoveStatusDraft {
			return fmt.Errorf("%w: move %s is %s", ErrInvalidMoveStatus, moveID, move.Status)
		}
		now := s.now().UTC()
		move.Status = MoveStatusPosted
		move.PostedAt = &now

		var res MoveResult
		if move.Inbound() {
			if err := tx.UpdateMove(ctx, move); err != nil {
				return err
			}
			layer := NewLayer(move, "", nil, now)
			if err := tx.InsertLayer(ctx, layer); err != nil {
				return err
			}
			res = MoveResult{Move: move, Layers: []StockLayer{layer}}
		} else {
			out, err := s.issue(ctx, tx, move, move.Qty.Abs(), allowNegative, false)
			if err != nil {
				return err
			}
			res = out.result
		}
		if res.Journal, err = s.postMove(ctx, tx, input.Posting, res.Move, item); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	s.committed(ctx, moveAction(MoveTypeAdjustment)+".post", result.Move)
	return result, nil
}

// RecordTransfer issues stock from one warehouse and receives the same
// layers, at their own costs, into another. Negative stock is never allowed.
func (s *Service) RecordTransfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.FromWarehouseID <= 0 || input.ToWarehouseID <= 0 {
		return TransferResult{}, ErrInvalidWarehouse
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return TransferResult{}, fmt.Errorf("%w: source and destination must differ", ErrInvalidWarehouse)
	}
	item, err := s.item(ctx, input.ItemID)
	if err != nil {
		return TransferResult{}, err
	}
	qtyBase, unit, err := toBase(item, input.Qty, input.Unit)
	if err != nil {
		return TransferResult{}, err
	}

	from := StockKey{ItemID: item.ID, WarehouseID: input.FromWarehouseID}
	to := StockKey{ItemID: item.ID, WarehouseID: input.ToWarehouseID}
	var result TransferResult
	err = s.write(ctx, []StockKey{from, to}, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		ref := input.RefID
		if ref == "" {
			ref = uuid.NewString()
		}
		actorID := actor(ctx, input.ActorID)
		out := s.newMove(item.ID, from.WarehouseID, MoveTypeTransfer, input.MoveDate, actorID)
		out.InputQty, out.InputUnit = input.Qty, unit
		out.RefType, out.RefID, out.Note = string(MoveTypeTransfer), ref, input.Note

		issuedOut, err := s.issue(ctx, tx, out, qtyBase, false, true)
		if err != nil {
			return err
		}
		alloc := issuedOut.alloc

		in := s.newMove(item.ID, to.WarehouseID, MoveTypeTransfer, out.MoveDate, actorID)
		in.Qty = alloc.ConsumedQty
		in.UnitCost = money.RoundCost(alloc.WeightedCost.Div(alloc.ConsumedQty))
		in.InputQty, in.InputUnit = input.Qty, unit
		in.RefType, in.RefID, in.Note = string(MoveTypeTransfer), ref, input.Note
		if err := tx.InsertMove(ctx, in); err != nil {
			return err
		}
		received := MoveResult{Move: in}
		for _, c := range issuedOut.result.Consumptions {
			src := issuedOut.layers[c.LayerID]
			layer := StockLayer{
				ID:           uuid.New(),
				ItemID:       item.ID,
				WarehouseID:  to.WarehouseID,
				OriginalQty:  c.Qty,
				RemainingQty: c.Qty,
				UnitCost:     c.UnitCost,
				LotCode:      src.LotCode,
				ExpiresAt:    src.ExpiresAt,
				SourceMoveID: in.ID,
				CreatedAt:    src.CreatedAt,
			}
			if err := tx.InsertLayer(ctx, layer); err != nil {
				return err
			}
			received.Layers = append(received.Layers, layer)
		}

		res := TransferResult{Out: issuedOut.result, In: received}
		if !input.Posting.Skip && s.poster != nil {
			res.Journal, err = s.poster.HandleTransferPosted(ctx, tx.Ledger(), TransferPostedEvent{
				Out:      issuedOut.result.Move,
				In:       in,
				Item:     item,
				Amount:   money.Round2(alloc.WeightedCost),
				Accounts: input.Posting.Accounts,
			})
			if err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.metrics.LayersConsumed(len(result.Out.Consumptions))
	s.committed(ctx, moveAction(MoveTypeTransfer), result.Out.Move, result.In.Move)
	return result, nil
}

type productionComponent struct {
	item    items.Item
	qtyBase decimal.Decimal
	input   ComponentInput
	unit    units.Unit
}

// RecordProduction issues every component from the warehouse and receives
// the output at the sum of the component amounts.
func (s *Service) RecordProduction(ctx context.Context, input ProductionInput) (ProductionResult, error) {
	if input.WarehouseID <= 0 {
		return ProductionResult{}, ErrInvalidWarehouse
	}
	if len(input.Components) == 0 {
		return ProductionResult{}, fmt.Errorf("%w: at least one component required", ErrInvalidComponent)
	}
	output, err := s.item(ctx, input.OutputItemID)
	if err != nil {
		return ProductionResult{}, err
	}
	outputQty, outputUnit, err := toBase(output, input.OutputQty, input.OutputUnit)
	if err != nil {
		return ProductionResult{}, err
	}

	keys := []StockKey{{ItemID: output.ID, WarehouseID: input.WarehouseID}}
	seen := map[int64]struct{}{output.ID: {}}
	components := make([]productionComponent, 0, len(input.Components))
	for _, c := range input.Components {
		if _, dup := seen[c.ItemID]; dup {
			return ProductionResult{}, fmt.Errorf("%w: item %d listed twice or as output", ErrInvalidComponent, c.ItemID)
		}
		seen[c.ItemID] = struct{}{}
		item, err := s.item(ctx, c.ItemID)
		if err != nil {
			return ProductionResult{}, err
		}
		qty, unit, err := toBase(item, c.Qty, c.Unit)
		if err != nil {
			return ProductionResult{}, fmt.Errorf("%w: item %d: %w", ErrInvalidComponent, c.ItemID, err)
		}
		components = append(components, productionComponent{item: item, qtyBase: qty, input: c, unit: unit})
		keys = append(keys, StockKey{ItemID: item.ID, WarehouseID: input.WarehouseID})
	}

	var result ProductionResult
	err = s.write(ctx, keys, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		ref := input.RefID
		if ref == "" {
			ref = uuid.NewString()
		}
		actorID := actor(ctx, input.ActorID)
		res := ProductionResult{TotalCost: decimal.Zero}
		posted := make([]ProductionComponent, 0, len(components))
		date := input.MoveDate

		for _, c := range components {
			move := s.newMove(c.item.ID, input.WarehouseID, MoveTypeProduction, date, actorID)
			date = move.MoveDate
			move.InputQty, move.InputUnit = c.input.Qty, c.unit
			move.RefType, move.RefID, move.Note = string(MoveTypeProduction), ref, input.Note

			out, err := s.issue(ctx, tx, move, c.qtyBase, s.allowNegative(c.item, nil), true)
			if err != nil {
				return err
			}
			amount := money.Amount(out.result.Move.Qty, out.result.Move.UnitCost)
			res.TotalCost = res.TotalCost.Add(amount)
			res.Components = append(res.Components, out.result)
			posted = append(posted, ProductionComponent{Move: out.result.Move, Item: c.item, Amount: amount})
		}

		move := s.newMove(output.ID, input.WarehouseID, MoveTypeProduction, date, actorID)
		move.Qty = outputQty
		move.UnitCost = money.RoundCost(res.TotalCost.Div(outputQty))
		move.InputQty, move.InputUnit = input.OutputQty, outputUnit
		move.RefType, move.RefID, move.Note = string(MoveTypeProduction), ref, input.Note
		received, err := s.receive(ctx, tx, move, input.LotCode, input.ExpiresAt)
		if err != nil {
			return err
		}
		res.Output = received

		if !input.Posting.Skip && s.poster != nil {
			res.Journal, err = s.poster.HandleProductionPosted(ctx, tx.Ledger(), ProductionPostedEvent{
				Output:     move,
				OutputItem: output,
				Components: posted,
				TotalCost:  res.TotalCost,
				Accounts:   input.Posting.Accounts,
			})
			if err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return ProductionResult{}, err
	}
	moves := []StockMove{result.Output.Move}
	for _, c := range result.Components {
		s.metrics.LayersConsumed(len(c.Consumptions))
		moves = append(moves, c.Move)
	}
	s.committed(ctx, moveAction(MoveTypeProduction), moves...)
	return result, nil
}
