package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/app"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	rt, err := app.Build(ctx, cfg, app.NewLogger(cfg))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	fmt.Println("→ Applying migrations...")
	if err := rt.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Println("→ Seeding accounting periods...")
	if err := seedPeriods(ctx, rt.Periods, time.Now().UTC().Year()); err != nil {
		log.Fatalf("seed periods: %v", err)
	}

	fmt.Println("→ Seeding items...")
	ids, err := seedItems(ctx, rt.Items)
	if err != nil {
		log.Fatalf("seed items: %v", err)
	}

	fmt.Println("→ Seeding opening stock...")
	if err := seedOpeningStock(ctx, rt.Inventory, ids); err != nil {
		log.Fatalf("seed opening stock: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// =============================================================================
// PERIODS
// =============================================================================

func seedPeriods(ctx context.Context, svc *periods.Service, year int) error {
	for month := time.January; month <= time.December; month++ {
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		period := periods.Period{
			Code:      start.Format("2006-01"),
			StartDate: start,
			EndDate:   start.AddDate(0, 1, -1),
			Status:    periods.PeriodStatusOpen,
		}
		if _, err := svc.Upsert(ctx, period); err != nil {
			return fmt.Errorf("period %s: %w", period.Code, err)
		}
	}
	return nil
}

// =============================================================================
// ITEMS
// =============================================================================

var seedCatalog = []items.Item{
	{Code: "FLOUR-25", Name: "Wheat flour", BaseUnit: units.Gram, DisplayUnit: units.Kilogram},
	{Code: "SUGAR-50", Name: "Cane sugar", BaseUnit: units.Gram, DisplayUnit: units.Kilogram},
	{Code: "OIL-5L", Name: "Vegetable oil", BaseUnit: units.Millilitre, DisplayUnit: units.Litre},
	{Code: "BOX-S", Name: "Shipping box small", BaseUnit: units.Each, DisplayUnit: units.Dozen},
	{Code: "CABLE-CU", Name: "Copper cable", BaseUnit: units.Millimetre, DisplayUnit: units.Metre,
		InventoryAccount: "1410"},
}

func seedItems(ctx context.Context, svc *items.Service) (map[string]int64, error) {
	ids := make(map[string]int64, len(seedCatalog))
	for _, item := range seedCatalog {
		created, err := svc.Create(ctx, item)
		if errors.Is(err, items.ErrDuplicateCode) {
			existing, _, listErr := svc.List(ctx, items.ListFilters{Search: item.Code, Limit: 1})
			if listErr != nil || len(existing) == 0 {
				return nil, fmt.Errorf("item %s exists but cannot be read: %w", item.Code, listErr)
			}
			created = existing[0]
			err = nil
		}
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.Code, err)
		}
		ids[item.Code] = created.ID
	}
	return ids, nil
}

// =============================================================================
// OPENING STOCK
// =============================================================================

type openingLayer struct {
	code      string
	warehouse int64
	qty       string
	unit      units.Unit
	cost      string
	lot       string
	expiresIn time.Duration
}

var openingLayers = []openingLayer{
	{code: "FLOUR-25", warehouse: 1, qty: "250", unit: units.Kilogram, cost: "0.85", lot: "FL-01", expiresIn: 180 * 24 * time.Hour},
	{code: "FLOUR-25", warehouse: 1, qty: "100", unit: units.Kilogram, cost: "0.92", lot: "FL-02", expiresIn: 90 * 24 * time.Hour},
	{code: "SUGAR-50", warehouse: 1, qty: "500", unit: units.Kilogram, cost: "0.60"},
	{code: "OIL-5L", warehouse: 2, qty: "120", unit: units.Litre, cost: "1.75", lot: "OL-7", expiresIn: 365 * 24 * time.Hour},
	{code: "BOX-S", warehouse: 1, qty: "40", unit: units.Dozen, cost: "3.00"},
	{code: "CABLE-CU", warehouse: 2, qty: "1.5", unit: units.Kilometre, cost: "2.10"},
}

func seedOpeningStock(ctx context.Context, svc *inventory.Service, ids map[string]int64) error {
	now := time.Now().UTC()
	for i, layer := range openingLayers {
		input := inventory.InboundInput{
			ItemID:         ids[layer.code],
			WarehouseID:    layer.warehouse,
			Type:           inventory.MoveTypeAdjustment,
			Qty:            decimal.RequireFromString(layer.qty),
			Unit:           layer.unit,
			UnitCost:       decimal.RequireFromString(layer.cost),
			LotCode:        layer.lot,
			MoveDate:       now,
			RefType:        "SEED",
			RefID:          fmt.Sprintf("opening-%d", i+1),
			Note:           "opening balance",
			IdempotencyKey: fmt.Sprintf("seed:opening:%s:%d:%d", layer.code, layer.warehouse, i),
		}
		if layer.expiresIn > 0 {
			expires := now.Add(layer.expiresIn)
			input.ExpiresAt = &expires
		}
		if _, err := svc.RecordInbound(ctx, input); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				continue
			}
			return fmt.Errorf("opening %s@%d: %w", layer.code, layer.warehouse, err)
		}
	}
	return nil
}
