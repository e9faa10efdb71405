package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/money"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostForMove(ctx context.Context, tx accounting.TxRepository, move accounting.Move, accounts accounting.AccountMap) (accounting.JournalEntry, error)
	Post(ctx context.Context, tx accounting.TxRepository, input accounting.PostingInput) (accounting.JournalEntry, error)
	Reverse(ctx context.Context, tx accounting.TxRepository, in accounting.ReverseInput) (accounting.JournalEntry, error)
}

// AccountResolver provides account map lookups.
type AccountResolver interface {
	Resolve(moveType string, warehouseID int64, inbound bool, item mappings.ItemAccounts) (accounting.AccountMap, error)
	Inventory(warehouseID int64, item mappings.ItemAccounts) string
}

// Hooks wires stock moves into the general ledger. It implements
// inventory.Poster.
type Hooks struct {
	ledger   Ledger
	accounts AccountResolver
}

var _ inventory.Poster = (*Hooks)(nil)

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, accounts AccountResolver) *Hooks {
	return &Hooks{ledger: ledger, accounts: accounts}
}

func itemAccounts(item items.Item) mappings.ItemAccounts {
	return mappings.ItemAccounts{Inventory: item.InventoryAccount, Expense: item.ExpenseAccount}
}

// HandleMovePosted posts Dr inventory / Cr offset for receipts and
// Dr expense / Cr inventory for issues.
func (h *Hooks) HandleMovePosted(ctx context.Context, tx accounting.TxRepository, evt inventory.MovePostedEvent) (*accounting.JournalEntry, error) {
	move := evt.Move
	accounts, err := h.accounts.Resolve(string(move.Type), move.WarehouseID, move.Inbound(), itemAccounts(evt.Item))
	if err != nil && evt.Accounts == nil {
		return nil, err
	}
	if evt.Accounts != nil {
		accounts = overlay(accounts, *evt.Accounts)
	}
	entry, err := h.ledger.PostForMove(ctx, tx, accounting.Move{
		ID:          move.ID,
		Type:        string(move.Type),
		Date:        move.MoveDate,
		Qty:         move.Qty,
		UnitCost:    move.UnitCost,
		Description: move.Note,
		PostedBy:    move.CreatedBy,
	}, accounts)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// HandleTransferPosted moves value between the two warehouses' inventory
// accounts. Nothing is posted when both resolve to the same account.
func (h *Hooks) HandleTransferPosted(ctx context.Context, tx accounting.TxRepository, evt inventory.TransferPostedEvent) (*accounting.JournalEntry, error) {
	dest := h.accounts.Inventory(evt.In.WarehouseID, itemAccounts(evt.Item))
	src := h.accounts.Inventory(evt.Out.WarehouseID, itemAccounts(evt.Item))
	if evt.Accounts != nil {
		dest = first(evt.Accounts.Inventory, dest)
		src = first(evt.Accounts.Offset, src)
	}
	if dest == "" || src == "" {
		return nil, fmt.Errorf("%w: transfer inventory accounts", accounting.ErrMappingNotFound)
	}
	if dest == src {
		return nil, nil
	}
	amount := money.Round2(evt.Amount)
	entry, err := h.ledger.Post(ctx, tx, accounting.PostingInput{
		Date:        evt.Out.MoveDate,
		SourceType:  accounting.SourceTransfer,
		SourceID:    evt.Out.ID.String(),
		Description: fmt.Sprintf("transfer %s: warehouse %d to %d", evt.Item.Code, evt.Out.WarehouseID, evt.In.WarehouseID),
		PostedBy:    evt.Out.CreatedBy,
		Lines: []accounting.PostingLineInput{
			{AccountCode: dest, Debit: amount},
			{AccountCode: src, Credit: amount},
		},
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// HandleProductionPosted debits the output inventory with the total and
// credits each component's inventory with its own amount.
func (h *Hooks) HandleProductionPosted(ctx context.Context, tx accounting.TxRepository, evt inventory.ProductionPostedEvent) (*accounting.JournalEntry, error) {
	output := h.accounts.Inventory(evt.Output.WarehouseID, itemAccounts(evt.OutputItem))
	if evt.Accounts != nil {
		output = first(evt.Accounts.Inventory, output)
	}
	if output == "" {
		return nil, fmt.Errorf("%w: production output inventory", accounting.ErrMappingNotFound)
	}
	lines := make([]accounting.PostingLineInput, 0, len(evt.Components)+1)
	lines = append(lines, accounting.PostingLineInput{AccountCode: output, Debit: evt.TotalCost, Memo: evt.OutputItem.Code})
	for _, c := range evt.Components {
		account := h.accounts.Inventory(c.Move.WarehouseID, itemAccounts(c.Item))
		if evt.Accounts != nil {
			account = first(evt.Accounts.Offset, account)
		}
		if account == "" {
			return nil, fmt.Errorf("%w: component %s inventory", accounting.ErrMappingNotFound, c.Item.Code)
		}
		lines = append(lines, accounting.PostingLineInput{AccountCode: account, Credit: c.Amount, Memo: c.Item.Code})
	}
	entry, err := h.ledger.Post(ctx, tx, accounting.PostingInput{
		Date:        evt.Output.MoveDate,
		SourceType:  accounting.SourceProduction,
		SourceID:    evt.Output.ID.String(),
		Description: fmt.Sprintf("production %s: %s units", evt.OutputItem.Code, evt.Output.Qty.String()),
		PostedBy:    evt.Output.CreatedBy,
		Lines:       lines,
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// HandleMoveReversed mirrors the original move's journal. A move recorded
// without a journal reverses without one.
func (h *Hooks) HandleMoveReversed(ctx context.Context, tx accounting.TxRepository, evt inventory.MoveReversedEvent) (*accounting.JournalEntry, error) {
	entry, err := h.ledger.Reverse(ctx, tx, accounting.ReverseInput{
		SourceType:       accounting.SourceStockMove,
		SourceID:         evt.Original.ID.String(),
		ReversalSourceID: evt.Reversal.ID.String(),
		Date:             evt.Reversal.MoveDate,
		Memo:             evt.Reversal.Note,
		PostedBy:         evt.Reversal.CreatedBy,
	})
	if err != nil {
		if errors.Is(err, accounting.ErrJournalNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func overlay(base, override accounting.AccountMap) accounting.AccountMap {
	base.Inventory = first(override.Inventory, base.Inventory)
	base.Expense = first(override.Expense, base.Expense)
	base.Offset = first(override.Offset, base.Offset)
	return base
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
