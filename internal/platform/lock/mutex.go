// Package lock serialises writers of the same stock aggregate.
package lock

import (
	"context"
	"sync"

	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

// KeyedMutex is an in-process lock table. Keys are acquired in sorted order
// so callers locking overlapping sets cannot deadlock.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	token chan struct{}
	refs  int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock blocks until every key is held or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = shared.SortLockKeys(keys...)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := m.acquire(ctx, key); err != nil {
			m.release(held)
			return nil, err
		}
		held = append(held, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() { m.release(held) })
	}, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		m.unref(key, e)
		m.mu.Unlock()
		return ctx.Err()
	}
}

func (m *KeyedMutex) release(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		e := m.locks[keys[i]]
		<-e.token
		m.unref(keys[i], e)
	}
}

func (m *KeyedMutex) unref(key string, e *entry) {
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Len reports how many keys are held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
