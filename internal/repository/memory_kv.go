package repository

import (
	"context"
	"sync"
)

// MemoryKV keeps values in process memory. Watchers hear about every Set and
// Delete, which makes it a stand-in for a shared store in tests.
type MemoryKV struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[string]map[int]func()
	nextID   int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values:   make(map[string][]byte),
		watchers: make(map[string]map[int]func()),
	}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	fns := m.watchersOf(key)
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.values, key)
	fns := m.watchersOf(key)
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (m *MemoryKV) Watch(ctx context.Context, key string, fn func()) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[int]func())
	}
	m.watchers[key][id] = fn
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.watchers[key], id)
	m.mu.Unlock()

	return ctx.Err()
}

func (m *MemoryKV) watchersOf(key string) []func() {
	fns := make([]func(), 0, len(m.watchers[key]))
	for _, fn := range m.watchers[key] {
		fns = append(fns, fn)
	}
	return fns
}
