// Package ordertest provides an in-memory order.Store for tests.
package ordertest

import (
	"context"
	"slices"
	"sync"

	"github.com/m3rciful/slrbot/bot/order"
)

// MemoryStore keeps the order state in memory. LoadErr and SaveErr, when set,
// are returned instead of touching the state.
type MemoryStore struct {
	mu      sync.Mutex
	state   order.State
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryStore returns a store seeded with st.
func NewMemoryStore(st order.State) *MemoryStore {
	return &MemoryStore{state: clone(st)}
}

// Load implements order.Store.
func (m *MemoryStore) Load(context.Context) (order.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return order.State{}, m.LoadErr
	}
	return clone(m.state), nil
}

// Save implements order.Store.
func (m *MemoryStore) Save(_ context.Context, st order.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.state = clone(st)
	m.saves++
	return nil
}

// State returns a copy of the stored state.
func (m *MemoryStore) State() order.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.state)
}

// Saves returns how many successful saves happened.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetErrors swaps the injected failures.
func (m *MemoryStore) SetErrors(load, save error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadErr, m.SaveErr = load, save
}

func clone(st order.State) order.State {
	return order.State{Counter: st.Counter, Orders: slices.Clone(st.Orders)}
}
