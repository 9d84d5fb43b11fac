package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"k8s.io/client-go/kubernetes/fake"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

func newManagers(t *testing.T) map[string]Manager {
	t.Helper()

	fileManager, err := NewFileStateManager(filepath.Join(t.TempDir(), "runs"))
	if err != nil {
		t.Fatalf("Failed to create file state manager: %v", err)
	}

	return map[string]Manager{
		"memory":     NewMemoryManager(),
		"file":       fileManager,
		"kubernetes": NewKubernetesManagerWithClient(fake.NewSimpleClientset(), "ingest"),
	}
}

func TestManagers(t *testing.T) {
	for name, manager := range newManagers(t) {
		manager := manager
		t.Run(name, func(t *testing.T) {
			testBasicOperations(t, manager)
			testListOrder(t, manager)
		})
	}
}

func testBasicOperations(t *testing.T, manager Manager) {
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	state := &State{
		JobID:       "job-1",
		Source:      "iris_data.csv",
		InsertQuery: "INSERT INTO iris",
		Status:      StatusRunning,
		StartedAt:   started,
		LastUpdated: started,
	}

	// Test CreateState
	if err := manager.CreateState(ctx, state); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}
	if err := manager.CreateState(ctx, state); err == nil {
		t.Error("Expected error when creating a duplicate state")
	}

	// Test GetState
	got, err := manager.GetState(ctx, "job-1")
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	if got.Source != "iris_data.csv" || got.Status != StatusRunning {
		t.Errorf("Unexpected state: %+v", got)
	}

	// Test UpdateState
	finished := started.Add(time.Minute)
	state.Status = StatusCompleted
	state.RowsAttempted = 150
	state.RowsSucceeded = 149
	state.RowsFailed = 1
	state.FirstFailure = "row 7: rejected"
	state.FinishedAt = &finished
	if err := manager.UpdateState(ctx, state); err != nil {
		t.Fatalf("Failed to update state: %v", err)
	}
	got, err = manager.GetState(ctx, "job-1")
	if err != nil {
		t.Fatalf("Failed to get updated state: %v", err)
	}
	if got.RowsAttempted != 150 || got.RowsFailed != 1 || got.Status != StatusCompleted {
		t.Errorf("Update not persisted: %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("Expected finished_at %v, got %v", finished, got.FinishedAt)
	}

	// Test DeleteState
	if err := manager.DeleteState(ctx, "job-1"); err != nil {
		t.Fatalf("Failed to delete state: %v", err)
	}
	if _, err := manager.GetState(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := manager.DeleteState(ctx, "job-1"); err != nil {
		t.Errorf("Deleting a missing state should not fail: %v", err)
	}
}

func testListOrder(t *testing.T, manager Manager) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		state := &State{
			JobID:     fmt.Sprintf("list-%d", i),
			Status:    StatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := manager.CreateState(ctx, state); err != nil {
			t.Fatalf("Failed to create state: %v", err)
		}
	}

	states, err := manager.ListStates(ctx)
	if err != nil {
		t.Fatalf("Failed to list states: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("Expected 3 states, got %d", len(states))
	}
	for i, want := range []string{"list-2", "list-1", "list-0"} {
		if states[i].JobID != want {
			t.Errorf("Expected %s at position %d, got %s", want, i, states[i].JobID)
		}
	}
}

func TestMemoryManagerConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	manager := NewMemoryManager()
	if err := manager.CreateState(ctx, &State{JobID: "concurrent", Status: StatusRunning}); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = manager.UpdateState(ctx, &State{JobID: "concurrent", RowsAttempted: int64(n*100 + j)})
				_, _ = manager.GetState(ctx, "concurrent")
			}
		}(i)
	}
	wg.Wait()

	if _, err := manager.GetState(ctx, "concurrent"); err != nil {
		t.Errorf("Failed to get state after concurrent updates: %v", err)
	}
}

func TestMemoryManagerReturnsCopies(t *testing.T) {
	ctx := context.Background()
	manager := NewMemoryManager()
	state := &State{JobID: "copy", Status: StatusRunning}
	if err := manager.CreateState(ctx, state); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}

	state.Status = StatusFailed
	got, _ := manager.GetState(ctx, "copy")
	if got.Status != StatusRunning {
		t.Errorf("Stored state changed through caller pointer: %s", got.Status)
	}
}

func TestFileStateManagerSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewFileStateManager(dir)
	if err != nil {
		t.Fatalf("Failed to create file state manager: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.state"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write broken state: %v", err)
	}
	if err := manager.CreateState(context.Background(), &State{JobID: "ok"}); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}

	states, err := manager.ListStates(context.Background())
	if err != nil {
		t.Fatalf("Failed to list states: %v", err)
	}
	if len(states) != 1 || states[0].JobID != "ok" {
		t.Errorf("Expected only the valid state, got %+v", states)
	}
}

func TestFileStateManagerStaysInBaseDir(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewFileStateManager(dir)
	if err != nil {
		t.Fatalf("Failed to create file state manager: %v", err)
	}

	path := manager.stateFile("../../etc/passwd")
	if filepath.Dir(path) != dir {
		t.Errorf("State file %s escapes %s", path, dir)
	}
}

func TestNewManager(t *testing.T) {
	memory, err := NewManager(&config.Config{StateBackend: config.StateMemory})
	if err != nil {
		t.Fatalf("Failed to create memory manager: %v", err)
	}
	if _, ok := memory.(*MemoryManager); !ok {
		t.Errorf("Expected *MemoryManager, got %T", memory)
	}

	file, err := NewManager(&config.Config{StateBackend: config.StateFile, StateDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create file manager: %v", err)
	}
	if _, ok := file.(*FileStateManager); !ok {
		t.Errorf("Expected *FileStateManager, got %T", file)
	}

	if _, err := NewManager(&config.Config{StateBackend: "redis"}); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}
