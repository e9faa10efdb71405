package items

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetItem satisfies the inventory item reader.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, fmt.Errorf("%w: invalid item ID", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	item = item.normalize()
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

// Update replaces descriptive fields. BaseUnit and UnitKind are fixed at
// creation because stored layer costs are priced per base unit.
func (s *Service) Update(ctx context.Context, id int64, item Item) (Item, error) {
	current, err := s.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if item.BaseUnit == "" {
		item.BaseUnit = current.BaseUnit
	}
	if item.UnitKind == "" {
		item.UnitKind = current.UnitKind
	}
	if item.DisplayUnit == "" {
		item.DisplayUnit = current.DisplayUnit
	}
	item = item.normalize()
	if item.BaseUnit != current.BaseUnit || item.UnitKind != current.UnitKind {
		return Item{}, ErrImmutableUnit
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	item.ID = id
	item.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}
