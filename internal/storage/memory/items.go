package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
)

type itemRepo struct {
	store *Store
}

func (r *itemRepo) List(_ context.Context, filters items.ListFilters) ([]items.Item, int, error) {
	var out []items.Item
	err := r.store.view(func(st *state) error {
		search := strings.ToLower(filters.Search)
		for _, it := range st.items {
			if search != "" && !strings.Contains(strings.ToLower(it.Code), search) && !strings.Contains(strings.ToLower(it.Name), search) {
				continue
			}
			if filters.Kind != "" && it.UnitKind != filters.Kind {
				continue
			}
			out = append(out, it)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	total := len(out)
	if filters.Limit > 0 {
		page := max(filters.Page, 1)
		start := min((page-1)*filters.Limit, total)
		end := min(start+filters.Limit, total)
		out = out[start:end]
	}
	return out, total, nil
}

func (r *itemRepo) Get(_ context.Context, id int64) (items.Item, error) {
	var it items.Item
	err := r.store.view(func(st *state) error {
		var ok bool
		if it, ok = st.items[id]; !ok {
			return items.ErrNotFound
		}
		return nil
	})
	return it, err
}

func (r *itemRepo) Create(_ context.Context, item items.Item) (items.Item, error) {
	err := r.store.update(func(st *state) error {
		if codeTaken(st, item.Code, 0) {
			return items.ErrDuplicateCode
		}
		st.nextItemID++
		now := r.store.now()
		item.ID = st.nextItemID
		item.CreatedAt, item.UpdatedAt = now, now
		st.items[item.ID] = item
		return nil
	})
	if err != nil {
		return items.Item{}, err
	}
	return item, nil
}

func (r *itemRepo) Update(_ context.Context, item items.Item) error {
	return r.store.update(func(st *state) error {
		current, ok := st.items[item.ID]
		if !ok {
			return items.ErrNotFound
		}
		if codeTaken(st, item.Code, item.ID) {
			return items.ErrDuplicateCode
		}
		current.Code = item.Code
		current.Name = item.Name
		current.DisplayUnit = item.DisplayUnit
		current.InventoryAccount = item.InventoryAccount
		current.ExpenseAccount = item.ExpenseAccount
		current.AllowNegative = item.AllowNegative
		current.UpdatedAt = r.store.now()
		st.items[item.ID] = current
		return nil
	})
}

func codeTaken(st *state, code string, except int64) bool {
	for id, it := range st.items {
		if id != except && it.Code == code {
			return true
		}
	}
	return false
}
