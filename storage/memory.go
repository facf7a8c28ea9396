package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryHistory implements HistoryStore with an in-process map.
// Useful for tests and for runs that don't need persistence.
// Thread-safe via mutex.
type MemoryHistory struct {
	mu   sync.RWMutex
	jobs map[string]JobRecord
}

// NewMemoryHistory creates an empty in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{jobs: make(map[string]JobRecord)}
}

// SaveJob inserts or replaces one job record.
func (m *MemoryHistory) SaveJob(ctx context.Context, record JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Copy the failure slice so later caller mutations don't leak in.
	record.Failures = append([]FailureRecord(nil), record.Failures...)
	m.jobs[record.ID] = record
	return nil
}

// LoadJob loads one job record.
func (m *MemoryHistory) LoadJob(ctx context.Context, id string) (JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.jobs[id]
	if !ok {
		return JobRecord{}, ErrJobNotFound
	}
	record.Failures = append([]FailureRecord(nil), record.Failures...)
	return record, nil
}

// ListJobs lists all jobs, most recent first.
func (m *MemoryHistory) ListJobs(ctx context.Context) ([]JobSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := []JobSummary{} // empty slice, not nil
	for _, record := range m.jobs {
		summaries = append(summaries, JobSummary{
			ID:           record.ID,
			Source:       record.Source,
			Provider:     record.Provider,
			CreatedAt:    record.CreatedAt,
			Stage:        record.Stage,
			TotalBatches: record.TotalBatches,
			Succeeded:    record.Succeeded,
			Failed:       record.Failed,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// DeleteJob removes one job.
func (m *MemoryHistory) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryHistory) Close() error {
	return nil
}

// Verify MemoryHistory implements HistoryStore
var _ HistoryStore = (*MemoryHistory)(nil)
