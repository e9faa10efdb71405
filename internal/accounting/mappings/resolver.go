package mappings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

// Resolver turns a move type and item defaults into an AccountMap.
type Resolver struct {
	cfg Config
}

// NewResolver normalises move-type keys to upper case.
func NewResolver(cfg Config) *Resolver {
	normalized := make(map[string]Accounts, len(cfg.MoveTypes))
	for key, accounts := range cfg.MoveTypes {
		normalized[strings.ToUpper(key)] = accounts
	}
	cfg.MoveTypes = normalized
	return &Resolver{cfg: cfg}
}

// Defaults exposes the default scope.
func (r *Resolver) Defaults() Accounts {
	return r.cfg.Default
}

// Inventory returns the stock account for an item held in a warehouse.
func (r *Resolver) Inventory(warehouseID int64, item ItemAccounts) string {
	return first(r.cfg.Warehouses[strconv.FormatInt(warehouseID, 10)].Inventory, item.Inventory, r.cfg.Default.Inventory)
}

// Resolve picks accounts with precedence move-type override, warehouse
// override, item default, global default.
func (r *Resolver) Resolve(moveType string, warehouseID int64, inbound bool, item ItemAccounts) (accounting.AccountMap, error) {
	override := r.cfg.MoveTypes[strings.ToUpper(moveType)]
	accounts := accounting.AccountMap{
		Inventory: first(override.Inventory, r.Inventory(warehouseID, item)),
	}
	adjustment := strings.EqualFold(moveType, "ADJUSTMENT")
	if inbound {
		gain := ""
		if adjustment {
			gain = r.cfg.Default.AdjustmentGain
		}
		accounts.Offset = first(override.Offset, gain, override.Payable, r.cfg.Default.Payable)
	} else {
		loss := ""
		if adjustment {
			loss = r.cfg.Default.AdjustmentLoss
		}
		accounts.Expense = first(override.Expense, loss, override.COGS, item.Expense, r.cfg.Default.COGS)
	}
	if accounts.Inventory == "" {
		return accounting.AccountMap{}, fmt.Errorf("%w: inventory for %s", shared.ErrMappingNotFound, moveType)
	}
	if inbound && accounts.Offset == "" {
		return accounting.AccountMap{}, fmt.Errorf("%w: offset for %s", shared.ErrMappingNotFound, moveType)
	}
	if !inbound && accounts.Expense == "" {
		return accounting.AccountMap{}, fmt.Errorf("%w: expense for %s", shared.ErrMappingNotFound, moveType)
	}
	return accounts, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
