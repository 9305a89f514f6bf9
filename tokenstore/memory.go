package tokenstore

import (
	"context"
	"sync"
)

// Memory is an in-process [Store]. It is the default store when the builder
// is given none; tokens then live exactly as long as the client instance.
type Memory struct {
	mu   sync.Mutex
	pair Pair
	set  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save implements [Store].
func (m *Memory) Save(_ context.Context, pair Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	m.set = true
	return nil
}

// Load implements [Store].
func (m *Memory) Load(_ context.Context) (Pair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Pair{}, false, nil
	}
	return m.pair, true, nil
}

// Clear implements [Store].
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = Pair{}
	m.set = false
	return nil
}
