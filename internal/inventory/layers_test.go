package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecrementRefusesOverConsumption(t *testing.T) {
	l := layer("5", "2", t0, nil)
	require.NoError(t, l.Decrement(dec("3")))
	require.True(t, l.RemainingQty.Equal(dec("2")))
	require.False(t, l.Whole())

	err := l.Decrement(dec("2.0001"))
	require.ErrorIs(t, err, ErrOverConsumption)
	var over *OverConsumptionError
	require.ErrorAs(t, err, &over)
	require.Equal(t, l.ID, over.LayerID)
	require.True(t, l.RemainingQty.Equal(dec("2")))

	require.NoError(t, l.Decrement(dec("2")))
	require.False(t, l.Available())
	require.ErrorIs(t, l.Decrement(dec("0")), ErrInvalidQuantity)
}

func TestSortFEFOTieBreaks(t *testing.T) {
	exp := t0.AddDate(0, 2, 0)
	a := layer("1", "1", t0, &exp)
	b := layer("1", "1", t0, &exp)
	if string(a.ID[:]) > string(b.ID[:]) {
		a, b = b, a
	}
	c := layer("1", "1", t0.Add(-time.Hour), nil)
	d := layer("1", "1", t0.Add(-2*time.Hour), nil)

	layers := []StockLayer{c, b, d, a}
	SortFEFO(layers)
	require.Equal(t, []uuid.UUID{a.ID, b.ID, d.ID, c.ID},
		[]uuid.UUID{layers[0].ID, layers[1].ID, layers[2].ID, layers[3].ID})
}

func TestNewLayerCopiesMove(t *testing.T) {
	move := StockMove{ID: uuid.New(), ItemID: 3, WarehouseID: 4, Qty: dec("1000"), UnitCost: dec("1.5")}
	l := NewLayer(move, "LOT-1", nil, t0)
	require.Equal(t, move.ID, l.SourceMoveID)
	require.True(t, l.Whole())
	require.True(t, l.UnitCost.Equal(dec("1.5")))
	require.Equal(t, "LOT-1", l.LotCode)
}
