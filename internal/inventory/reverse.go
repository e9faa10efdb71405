package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/money"
)

// Reverse posts the offsetting move for a POSTED purchase, sale or
// adjustment and marks the original REVERSED. An inbound move is reversed by
// consuming the layer it opened, which must still be whole. An outbound move
// is reversed by opening new layers at the consumed costs; zero-cost
// shortfalls are not returned to stock.
func (s *Service) Reverse(ctx context.Context, moveID uuid.UUID, input ReverseInput) (MoveResult, error) {
	original, err := s.repo.GetMove(ctx, moveID)
	if err != nil {
		return MoveResult{}, err
	}
	item, err := s.item(ctx, original.ItemID)
	if err != nil {
		return MoveResult{}, err
	}

	var result MoveResult
	err = s.write(ctx, []StockKey{original.Key()}, input.IdempotencyKey, func(ctx context.Context, tx TxRepository) error {
		move, err := tx.GetMoveForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if err := reversible(move); err != nil {
			return err
		}

		rev := s.newMove(move.ItemID, move.WarehouseID, move.Type, input.MoveDate, actor(ctx, input.ActorID))
		rev.ReversalOf = &move.ID
		rev.RefType, rev.RefID = "REVERSAL", move.ID.String()
		rev.Note = input.Note
		rev.InputUnit = item.BaseUnit

		var res MoveResult
		if move.Inbound() {
			res, err = s.reverseInbound(ctx, tx, move, rev)
		} else {
			res, err = s.reverseOutbound(ctx, tx, move, rev)
		}
		if err != nil {
			return err
		}

		move.Status = MoveStatusReversed
		if err := tx.UpdateMove(ctx, move); err != nil {
			return err
		}
		if !input.Posting.Skip && s.poster != nil {
			res.Journal, err = s.poster.HandleMoveReversed(ctx, tx.Ledger(), MoveReversedEvent{Original: move, Reversal: res.Move})
			if err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	s.committed(ctx, "inventory.move.reverse", result.Move)
	return result, nil
}

func reversible(move StockMove) error {
	if move.Status != MoveStatusPosted {
		return fmt.Errorf("%w: move %s is %s", ErrInvalidMoveStatus, move.ID, move.Status)
	}
	if move.ReversalOf != nil {
		return fmt.Errorf("%w: move %s is itself a reversal", ErrNotReversible, move.ID)
	}
	if move.Type == MoveTypeTransfer || move.Type == MoveTypeProduction {
		return fmt.Errorf("%w: %s moves are part of a multi-move document", ErrNotReversible, move.Type)
	}
	return nil
}

func (s *Service) reverseInbound(ctx context.Context, tx TxRepository, move, rev StockMove) (MoveResult, error) {
	layers, err := tx.LayersBySourceMove(ctx, move.ID)
	if err != nil {
		return MoveResult{}, err
	}
	for _, layer := range layers {
		if !layer.Whole() {
			return MoveResult{}, fmt.Errorf("%w: layer %s has %s of %s left", ErrLayerConsumed, layer.ID, layer.RemainingQty, layer.OriginalQty)
		}
	}
	rev.Qty = move.Qty.Neg()
	rev.UnitCost = move.UnitCost
	rev.InputQty = move.Qty
	if err := tx.InsertMove(ctx, rev); err != nil {
		return MoveResult{}, err
	}

	consumptions := make([]StockConsumption, 0, len(layers))
	for _, layer := range layers {
		qty := layer.RemainingQty
		if err := layer.Decrement(qty); err != nil {
			return MoveResult{}, err
		}
		if err := tx.DecrementLayer(ctx, layer.ID, qty); err != nil {
			return MoveResult{}, err
		}
		consumptions = append(consumptions, StockConsumption{
			ID:        uuid.New(),
			MoveID:    rev.ID,
			LayerID:   layer.ID,
			Qty:       qty,
			UnitCost:  layer.UnitCost,
			CreatedAt: rev.CreatedAt,
		})
	}
	if err := tx.InsertConsumptions(ctx, consumptions); err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Move: rev, Consumptions: consumptions}, nil
}

func (s *Service) reverseOutbound(ctx context.Context, tx TxRepository, move, rev StockMove) (MoveResult, error) {
	consumptions, err := tx.ListConsumptions(ctx, move.ID)
	if err != nil {
		return MoveResult{}, err
	}
	backed, value := decimal.Zero, decimal.Zero
	for _, c := range consumptions {
		if c.Shortfall() {
			continue
		}
		backed = backed.Add(c.Qty)
		value = value.Add(c.Qty.Mul(c.UnitCost))
	}
	if !backed.IsPositive() {
		return MoveResult{}, fmt.Errorf("%w: move %s drew only zero-cost shortfall", ErrNotReversible, move.ID)
	}
	rev.Qty = backed
	rev.UnitCost = money.RoundCost(value.Div(backed))
	rev.InputQty = backed
	if err := tx.InsertMove(ctx, rev); err != nil {
		return MoveResult{}, err
	}

	res := MoveResult{Move: rev}
	for _, c := range consumptions {
		if c.Shortfall() {
			continue
		}
		src, err := tx.GetLayerForUpdate(ctx, c.LayerID)
		if err != nil {
			return MoveResult{}, err
		}
		layer := StockLayer{
			ID:           uuid.New(),
			ItemID:       move.ItemID,
			WarehouseID:  move.WarehouseID,
			OriginalQty:  c.Qty,
			RemainingQty: c.Qty,
			UnitCost:     c.UnitCost,
			LotCode:      src.LotCode,
			ExpiresAt:    src.ExpiresAt,
			SourceMoveID: rev.ID,
			CreatedAt:    src.CreatedAt,
		}
		if err := tx.InsertLayer(ctx, layer); err != nil {
			return MoveResult{}, err
		}
		res.Layers = append(res.Layers, layer)
	}
	return res, nil
}

// PostJournal posts the journal of a POSTED single move whose posting was
// skipped when it was recorded.
func (s *Service) PostJournal(ctx context.Context, moveID uuid.UUID, accounts *accounting.AccountMap) (accounting.JournalEntry, error) {
	if s.poster == nil {
		return accounting.JournalEntry{}, errors.New("inventory: journal posting not configured")
	}
	move, err := s.repo.GetMove(ctx, moveID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if move.Type == MoveTypeTransfer || move.Type == MoveTypeProduction {
		return accounting.JournalEntry{}, fmt.Errorf("%w: %s", ErrUnsupportedMove, move.Type)
	}
	item, err := s.item(ctx, move.ItemID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}

	var entry accounting.JournalEntry
	err = s.write(ctx, []StockKey{move.Key()}, "", func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetMoveForUpdate(ctx, moveID)
		if err != nil {
			return err
		}
		if current.Status != MoveStatusPosted {
			return fmt.Errorf("%w: move %s is %s", ErrInvalidMoveStatus, moveID, current.Status)
		}
		posted, err := s.poster.HandleMovePosted(ctx, tx.Ledger(), MovePostedEvent{Move: current, Item: item, Accounts: accounts})
		if err != nil {
			return err
		}
		if posted == nil {
			return fmt.Errorf("%w: no journal produced for move %s", ErrUnsupportedMove, moveID)
		}
		entry = *posted
		return nil
	})
	return entry, err
}
