package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// Store persists finished pipeline runs.
type Store interface {
	Close() error

	// SaveRun writes the run and all its records. Saving an ID twice replaces
	// the earlier run.
	SaveRun(ctx context.Context, run Run) error
	// GetRun returns the run header without records, or internalerr.ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns run headers, newest first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// Records returns the records of a run in input order.
	Records(ctx context.Context, runID string) ([]record.Enriched, error)
}

// Run is one execution of the pipeline over an input file.
type Run struct {
	ID         string
	Input      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      record.RunStatistics
	Records    []record.Enriched
}

// IDSource hands out lexically sortable run identifiers.
type IDSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDSource creates an id source seeded from crypto/rand.
func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ULID string for t.
func (s *IDSource) Next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}
