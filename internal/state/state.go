package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when no state exists for a job
var ErrNotFound = errors.New("state not found")

// State records the progress and outcome of one ingest job
type State struct {
	JobID         string     `json:"job_id"`
	Source        string     `json:"source"`
	InsertQuery   string     `json:"insert_query"`
	Status        string     `json:"status"`
	RowsAttempted int64      `json:"rows_attempted"`
	RowsSucceeded int64      `json:"rows_succeeded"`
	RowsFailed    int64      `json:"rows_failed"`
	FirstFailure  string     `json:"first_failure,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	LastUpdated   time.Time  `json:"last_updated"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Manager defines the interface for state management
type Manager interface {
	// CreateState stores a new job state; it fails if the job already exists
	CreateState(ctx context.Context, state *State) error

	// GetState retrieves the state of a job, or ErrNotFound
	GetState(ctx context.Context, jobID string) (*State, error)

	// UpdateState replaces the stored state of a job
	UpdateState(ctx context.Context, state *State) error

	// ListStates returns all job states, most recent first
	ListStates(ctx context.Context) ([]*State, error)

	// DeleteState removes the state of a job
	DeleteState(ctx context.Context, jobID string) error
}

// NewManager creates the state manager selected by the configuration
func NewManager(cfg *config.Config) (Manager, error) {
	switch cfg.StateBackend {
	case config.StateMemory:
		return NewMemoryManager(), nil
	case config.StateFile:
		m, err := NewFileStateManager(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.StateKubernetes:
		m, err := NewKubernetesManager(cfg.StateNamespace)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.StateBackend)
	}
}

func sortByStart(states []*State) {
	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.After(states[j].StartedAt)
	})
}
