package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]store.RunRecord
}

func New() *MemoryStore {
	return &MemoryStore{
		runs: map[string]store.RunRecord{},
	}
}

func (m *MemoryStore) CreateRun(ctx context.Context, run store.RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	run.EnvironmentCounts = copyCounts(run.EnvironmentCounts)
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) CompleteRun(ctx context.Context, run store.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	existing.Status = run.Status
	existing.Message = run.Message
	existing.StepCount = run.StepCount
	existing.EnvironmentCounts = copyCounts(run.EnvironmentCounts)
	existing.ReportGenerated = run.ReportGenerated
	existing.CompletedAt = run.CompletedAt
	if existing.CompletedAt == "" {
		existing.CompletedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	m.runs[run.ID] = existing
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	run.EnvironmentCounts = copyCounts(run.EnvironmentCounts)
	return &run, nil
}

// ListRuns returns the newest runs first. A limit <= 0 returns every run.
func (m *MemoryStore) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	m.mu.RLock()
	runs := make([]store.RunRecord, 0, len(m.runs))
	for _, run := range m.runs {
		run.EnvironmentCounts = copyCounts(run.EnvironmentCounts)
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt == runs[j].CreatedAt {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt > runs[j].CreatedAt
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func copyCounts(counts map[string]int) map[string]int {
	if counts == nil {
		return nil
	}
	out := make(map[string]int, len(counts))
	for key, value := range counts {
		out[key] = value
	}
	return out
}
