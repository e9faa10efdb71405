package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func layer(qty, cost string, created time.Time, expires *time.Time) StockLayer {
	return StockLayer{
		ID:           uuid.New(),
		ItemID:       1,
		WarehouseID:  1,
		OriginalQty:  dec(qty),
		RemainingQty: dec(qty),
		UnitCost:     dec(cost),
		ExpiresAt:    expires,
		CreatedAt:    created,
	}
}

var t0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func TestAllocateFIFOWeightedAverage(t *testing.T) {
	first := layer("10", "2", t0, nil)
	second := layer("5", "4", t0.Add(time.Hour), nil)

	alloc, err := Allocate([]StockLayer{second, first}, dec("12"), false)
	require.NoError(t, err)
	require.Len(t, alloc.Parts, 2)
	require.Equal(t, first.ID, alloc.Parts[0].LayerID)
	require.True(t, alloc.Parts[0].Qty.Equal(dec("10")))
	require.Equal(t, second.ID, alloc.Parts[1].LayerID)
	require.True(t, alloc.Parts[1].Qty.Equal(dec("2")))
	require.True(t, alloc.WeightedCost.Equal(dec("28")))
	require.True(t, alloc.AvgUnitCost.Equal(dec("2.33")))
	require.True(t, alloc.Shortfall.IsZero())

	require.True(t, second.RemainingQty.Equal(dec("5")), "input snapshot must not change")
}

func TestAllocateExpiringLayersFirst(t *testing.T) {
	soon := t0.AddDate(0, 1, 0)
	later := t0.AddDate(0, 6, 0)
	noExpiry := layer("5", "1", t0, nil)
	expLater := layer("5", "2", t0.Add(time.Hour), &later)
	expSoon := layer("5", "3", t0.Add(2*time.Hour), &soon)

	alloc, err := Allocate([]StockLayer{noExpiry, expLater, expSoon}, dec("12"), false)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{expSoon.ID, expLater.ID, noExpiry.ID},
		[]uuid.UUID{alloc.Parts[0].LayerID, alloc.Parts[1].LayerID, alloc.Parts[2].LayerID})
	require.True(t, alloc.Parts[2].Qty.Equal(dec("2")))
}

func TestAllocateInsufficientStock(t *testing.T) {
	_, err := Allocate([]StockLayer{layer("3", "1", t0, nil)}, dec("5"), false)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Requested.Equal(dec("5")))
	require.True(t, insufficient.Available.Equal(dec("3")))
}

func TestAllocateShortfallAtZeroCost(t *testing.T) {
	alloc, err := Allocate([]StockLayer{layer("3", "2", t0, nil)}, dec("5"), true)
	require.NoError(t, err)
	require.Len(t, alloc.Parts, 2)
	require.Equal(t, uuid.Nil, alloc.Parts[1].LayerID)
	require.True(t, alloc.Parts[1].UnitCost.IsZero())
	require.True(t, alloc.Shortfall.Equal(dec("2")))
	require.True(t, alloc.ConsumedQty.Equal(dec("5")))
	require.True(t, alloc.AvgUnitCost.Equal(dec("1.2")))
	require.Len(t, alloc.LayerParts(), 1)
}

func TestAllocateEmptyStoreWithNegativeAllowed(t *testing.T) {
	alloc, err := Allocate(nil, dec("4"), true)
	require.NoError(t, err)
	require.True(t, alloc.AvgUnitCost.IsZero())
	require.True(t, alloc.Shortfall.Equal(dec("4")))
}

func TestAllocateSkipsDepletedLayers(t *testing.T) {
	empty := layer("4", "9", t0, nil)
	empty.RemainingQty = decimal.Zero
	full := layer("4", "1", t0.Add(time.Hour), nil)

	alloc, err := Allocate([]StockLayer{empty, full}, dec("4"), false)
	require.NoError(t, err)
	require.Len(t, alloc.Parts, 1)
	require.Equal(t, full.ID, alloc.Parts[0].LayerID)
}

func TestAllocateRejectsNonPositive(t *testing.T) {
	_, err := Allocate(nil, decimal.Zero, true)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = Allocate(nil, dec("-1"), true)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
