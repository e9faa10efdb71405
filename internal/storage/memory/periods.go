package memory

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
)

type periodRepo struct {
	store *Store
}

func (r *periodRepo) List(_ context.Context) ([]periods.Period, error) {
	var out []periods.Period
	err := r.store.view(func(st *state) error {
		for _, p := range st.periods {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, err
}

// Upsert inserts or replaces the period with the same code.
func (r *periodRepo) Upsert(_ context.Context, period periods.Period) (periods.Period, error) {
	err := r.store.update(func(st *state) error {
		if existing, ok := st.periods[period.Code]; ok {
			period.ID = existing.ID
		} else {
			st.nextPeriodID++
			period.ID = st.nextPeriodID
		}
		period.UpdatedAt = r.store.now()
		st.periods[period.Code] = period
		return nil
	})
	if err != nil {
		return periods.Period{}, err
	}
	return period, nil
}
