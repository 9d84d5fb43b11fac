package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStateManager implements the Manager interface using one JSON file per job
type FileStateManager struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStateManager creates a new file-based state manager rooted at baseDir
func NewFileStateManager(baseDir string) (*FileStateManager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStateManager{
		baseDir: baseDir,
	}, nil
}

func (m *FileStateManager) CreateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.stateFile(state.JobID)); err == nil {
		return fmt.Errorf("state already exists for job %s", state.JobID)
	}
	return m.saveState(state)
}

func (m *FileStateManager) GetState(ctx context.Context, jobID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.readState(m.stateFile(jobID))
}

func (m *FileStateManager) UpdateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveState(state)
}

func (m *FileStateManager) ListStates(ctx context.Context) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var states []*State
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".state" {
			continue
		}
		state, err := m.readState(filepath.Join(m.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	sortByStart(states)
	return states, nil
}

func (m *FileStateManager) DeleteState(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.stateFile(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

func (m *FileStateManager) stateFile(jobID string) string {
	// job ids are generated uuids; strip separators anyway so a crafted id
	// cannot escape the base directory
	name := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(jobID)
	return filepath.Join(m.baseDir, name+".state")
}

func (m *FileStateManager) readState(path string) (*State, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built by stateFile
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (m *FileStateManager) saveState(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := m.stateFile(state.JobID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
