package items

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

type stubRepo struct {
	items  map[int64]Item
	nextID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{items: make(map[int64]Item)}
}

func (r *stubRepo) List(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	out := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, len(out), nil
}

func (r *stubRepo) Get(ctx context.Context, id int64) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *stubRepo) Create(ctx context.Context, item Item) (Item, error) {
	for _, existing := range r.items {
		if existing.Code == item.Code {
			return Item{}, ErrDuplicateCode
		}
	}
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *stubRepo) Update(ctx context.Context, item Item) error {
	if _, ok := r.items[item.ID]; !ok {
		return ErrNotFound
	}
	r.items[item.ID] = item
	return nil
}

func TestCreateDefaultsDisplayUnitAndKind(t *testing.T) {
	svc := NewService(newStubRepo())
	created, err := svc.Create(context.Background(), Item{Code: " FLOUR ", Name: "Flour", BaseUnit: units.Gram})
	require.NoError(t, err)
	require.Equal(t, "FLOUR", created.Code)
	require.Equal(t, units.Gram, created.DisplayUnit)
	require.Equal(t, units.FamilyWeight, created.UnitKind)
}

func TestCreateRejectsUnitOutsideKind(t *testing.T) {
	svc := NewService(newStubRepo())
	_, err := svc.Create(context.Background(), Item{Code: "OIL", Name: "Oil", BaseUnit: units.Millilitre, DisplayUnit: units.Kilogram})
	require.ErrorIs(t, err, ErrUnitKindMismatch)

	_, err = svc.Create(context.Background(), Item{Code: "OIL", Name: "Oil"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateKeepsBaseUnitImmutable(t *testing.T) {
	svc := NewService(newStubRepo())
	ctx := context.Background()
	created, err := svc.Create(ctx, Item{Code: "SUGAR", Name: "Sugar", BaseUnit: units.Gram, DisplayUnit: units.Kilogram})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, Item{Code: "SUGAR", Name: "Sugar", BaseUnit: units.Kilogram})
	require.ErrorIs(t, err, ErrImmutableUnit)

	updated, err := svc.Update(ctx, created.ID, Item{Code: "SUGAR", Name: "Cane sugar", DisplayUnit: units.Pound, AllowNegative: true})
	require.NoError(t, err)
	require.Equal(t, units.Gram, updated.BaseUnit)
	require.Equal(t, units.Pound, updated.DisplayUnit)
	require.True(t, updated.AllowNegative)
	require.Equal(t, "Cane sugar", updated.Name)
}

func TestGetItemValidatesID(t *testing.T) {
	svc := NewService(newStubRepo())
	_, err := svc.GetItem(context.Background(), 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.GetItem(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
}
