package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/record"
	"github.com/cognicore/obsetl/pkg/obsetl/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a deep copy of run, replacing any run with the same id.
func (s *Store) SaveRun(ctx context.Context, run store.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is empty", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	run.Stats = copyStats(run.Stats)
	run.Records = copyRecords(run.Records)
	s.runs[run.ID] = run
	return nil
}

// GetRun returns the run header.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return header(run), nil
}

// ListRuns returns run headers, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, header(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns a copy of the run's records.
func (s *Store) Records(ctx context.Context, runID string) ([]record.Enriched, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return copyRecords(run.Records), nil
}

func header(run store.Run) store.Run {
	run.Stats = copyStats(run.Stats)
	run.Records = nil
	return run
}

func copyStats(st record.RunStatistics) record.RunStatistics {
	reasons := make(map[record.FallbackReason]int, len(st.FallbacksByReason))
	for k, v := range st.FallbacksByReason {
		reasons[k] = v
	}
	st.FallbacksByReason = reasons
	return st
}

func copyRecords(recs []record.Enriched) []record.Enriched {
	if recs == nil {
		return nil
	}
	out := make([]record.Enriched, len(recs))
	for i, rec := range recs {
		if rec.Raw.Metadata != nil {
			meta := make(map[string]string, len(rec.Raw.Metadata))
			for k, v := range rec.Raw.Metadata {
				meta[k] = v
			}
			rec.Raw.Metadata = meta
		}
		out[i] = rec
	}
	return out
}
