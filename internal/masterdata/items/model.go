package items

import (
	"time"

	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

// Item is a tracked good. BaseUnit is the unit every stored quantity and
// unit cost is expressed in.
type Item struct {
	ID               int64        `json:"id"`
	Code             string       `json:"code"`
	Name             string       `json:"name"`
	BaseUnit         units.Unit   `json:"base_unit"`
	DisplayUnit      units.Unit   `json:"display_unit"`
	UnitKind         units.Family `json:"unit_kind"`
	InventoryAccount string       `json:"inventory_account,omitempty"`
	ExpenseAccount   string       `json:"expense_account,omitempty"`
	AllowNegative    bool         `json:"allow_negative"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// ListFilters narrows item listings.
type ListFilters struct {
	Search string
	Kind   units.Family
	Page   int
	Limit  int
}
