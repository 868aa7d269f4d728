package store

import (
	"context"
	"sync"
)

// Memory is a process-local Store. State is lost on restart, which is
// acceptable for development and single-instance deployments.
type Memory struct {
	mu     sync.RWMutex
	states map[string]string
	menus  map[string][]byte
	images []byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		states: make(map[string]string),
		menus:  make(map[string][]byte),
	}
}

func (m *Memory) State(_ context.Context, chatID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[chatID]
	if !ok {
		return "", ErrNotFound
	}
	return state, nil
}

func (m *Memory) SetState(_ context.Context, chatID, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[chatID] = state
	return nil
}

func (m *Memory) Menu(_ context.Context, categoryID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.menus[categoryID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (m *Memory) SetMenu(_ context.Context, categoryID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.menus[categoryID] = stored
	return nil
}

func (m *Memory) DropMenus(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menus = make(map[string][]byte)
	return nil
}

func (m *Memory) Images(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.images == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.images))
	copy(out, m.images)
	return out, nil
}

func (m *Memory) SetImages(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = make([]byte, len(payload))
	copy(m.images, payload)
	return nil
}

func (m *Memory) Close() error { return nil }
