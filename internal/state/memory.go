package state

import (
	"context"
	"fmt"
	"sync"
)

// MemoryManager implements the Manager interface using in-memory storage
// This is useful for testing and single-instance deployments
type MemoryManager struct {
	states map[string]*State
	mu     sync.RWMutex
}

// NewMemoryManager creates a new in-memory state manager
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		states: make(map[string]*State),
	}
}

func (m *MemoryManager) CreateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[state.JobID]; exists {
		return fmt.Errorf("state already exists for job %s", state.JobID)
	}
	cp := *state
	m.states[state.JobID] = &cp
	return nil
}

func (m *MemoryManager) GetState(ctx context.Context, jobID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[jobID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (m *MemoryManager) UpdateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *state
	m.states[state.JobID] = &cp
	return nil
}

func (m *MemoryManager) ListStates(ctx context.Context) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*State, 0, len(m.states))
	for _, state := range m.states {
		cp := *state
		states = append(states, &cp)
	}
	sortByStart(states)
	return states, nil
}

func (m *MemoryManager) DeleteState(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, jobID)
	return nil
}
