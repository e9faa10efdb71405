// Package memory is a transactional in-process store for every repository
// port. Each transaction works on a private copy of the state and swaps it
// in on commit, so a failed call leaves nothing behind. Transactions run one
// at a time.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
)

type state struct {
	items      map[int64]items.Item
	nextItemID int64

	moves        map[uuid.UUID]inventory.StockMove
	moveOrder    []uuid.UUID
	layers       map[uuid.UUID]inventory.StockLayer
	layerOrder   []uuid.UUID
	consumptions []inventory.StockConsumption

	journals     map[uuid.UUID]accounting.JournalEntry
	journalOrder []uuid.UUID
	sources      map[sourceKey]uuid.UUID
	sequences    map[string]int64

	periods      map[string]periods.Period
	nextPeriodID int64

	idempotency map[string]time.Time
}

type sourceKey struct {
	sourceType string
	sourceID   string
}

func newState() *state {
	return &state{
		items:       make(map[int64]items.Item),
		moves:       make(map[uuid.UUID]inventory.StockMove),
		layers:      make(map[uuid.UUID]inventory.StockLayer),
		journals:    make(map[uuid.UUID]accounting.JournalEntry),
		sources:     make(map[sourceKey]uuid.UUID),
		sequences:   make(map[string]int64),
		periods:     make(map[string]periods.Period),
		idempotency: make(map[string]time.Time),
	}
}

// clone copies every container. Values are copied by assignment; journal
// lines are never mutated after insert so sharing their backing arrays is safe.
func (s *state) clone() *state {
	return &state{
		items:        maps.Clone(s.items),
		nextItemID:   s.nextItemID,
		moves:        maps.Clone(s.moves),
		moveOrder:    slices.Clone(s.moveOrder),
		layers:       maps.Clone(s.layers),
		layerOrder:   slices.Clone(s.layerOrder),
		consumptions: slices.Clone(s.consumptions),
		journals:     maps.Clone(s.journals),
		journalOrder: slices.Clone(s.journalOrder),
		sources:      maps.Clone(s.sources),
		sequences:    maps.Clone(s.sequences),
		periods:      maps.Clone(s.periods),
		nextPeriodID: s.nextPeriodID,
		idempotency:  maps.Clone(s.idempotency),
	}
}

// Store holds the committed state.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
	now  func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// update runs fn on a private copy and commits it when fn succeeds.
func (s *Store) update(fn func(*state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(work); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// view runs fn against the committed state.
func (s *Store) view(fn func(*state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// Inventory returns the inventory repository port.
func (s *Store) Inventory() inventory.RepositoryPort { return &inventoryRepo{store: s} }

// Ledger returns the accounting repository port.
func (s *Store) Ledger() accounting.RepositoryPort { return &ledgerRepo{store: s} }

// Items returns the item master data repository.
func (s *Store) Items() items.Repository { return &itemRepo{store: s} }

// Periods returns the period repository.
func (s *Store) Periods() periods.Repository { return &periodRepo{store: s} }

// PurgeIdempotencyKeys drops keys older than olderThan.
func (s *Store) PurgeIdempotencyKeys(_ context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	var purged int64
	err := s.update(func(st *state) error {
		for key, at := range st.idempotency {
			if at.Before(cutoff) {
				delete(st.idempotency, key)
				purged++
			}
		}
		return nil
	})
	return purged, err
}
