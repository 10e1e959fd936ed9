// Package pipeline ties per-row normalization to per-row enrichment.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/obsetl/pkg/obsetl/normalize"
	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// DefaultProgressEvery is how many rows pass between progress log lines.
const DefaultProgressEvery = 5

// Enricher derives scores from cleaned observation text. It must absorb its
// own failures.
type Enricher interface {
	Enrich(ctx context.Context, cleaned string) record.Enrichment
}

// Options configures a Pipeline.
type Options struct {
	Dates    *normalize.DateParser
	Enricher Enricher
	// Workers > 1 enriches rows concurrently; output order is unchanged.
	Workers       int
	ProgressEvery int
	Logger        zerolog.Logger
}

// Pipeline orchestrates the row flow:
// identifier → date → text → enrichment
type Pipeline struct {
	dates         *normalize.DateParser
	enricher      Enricher
	workers       int
	progressEvery int
	logger        zerolog.Logger
}

// New creates a pipeline with the given components
func New(opts Options) *Pipeline {
	dates := opts.Dates
	if dates == nil {
		dates = normalize.NewDateParser(0, nil)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	progress := opts.ProgressEvery
	if progress <= 0 {
		progress = DefaultProgressEvery
	}
	return &Pipeline{
		dates:         dates,
		enricher:      opts.Enricher,
		workers:       workers,
		progressEvery: progress,
		logger:        opts.Logger,
	}
}

// Normalize applies the three field normalizers to one row.
func (p *Pipeline) Normalize(raw record.Raw) record.Normalized {
	return record.Normalized{
		Identifier:  normalize.Identifier(raw.Identifier),
		SessionDate: p.dates.Parse(raw.SessionDate),
		Text:        normalize.Text(raw.Observation),
	}
}

// Process normalizes and enriches one row.
func (p *Pipeline) Process(ctx context.Context, raw record.Raw) record.Enriched {
	norm := p.Normalize(raw)
	return record.Enriched{
		Raw:        raw,
		Normalized: norm,
		Enrichment: p.enricher.Enrich(ctx, norm.Text),
	}
}

// Run processes every row and returns the results in input order together
// with the run statistics. A row never aborts the run.
func (p *Pipeline) Run(ctx context.Context, raws []record.Raw) ([]record.Enriched, record.RunStatistics) {
	out := make([]record.Enriched, len(raws))
	var done atomic.Int64

	step := func(i int) {
		out[i] = p.Process(ctx, raws[i])
		if n := done.Add(1); n%int64(p.progressEvery) == 0 {
			p.logger.Info().Int64("done", n).Int("total", len(raws)).Msg("processed rows")
		}
	}

	if p.workers == 1 {
		for i := range raws {
			step(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i := range raws {
			i := i
			g.Go(func() error {
				step(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	stats := record.Tally(out)
	p.logger.Info().
		Int("rows", stats.Rows).
		Int("unknown_ids", stats.UnknownIDs).
		Int("unparseable_dates", stats.UnparseableDates).
		Int("fallback_enrichments", stats.FallbackEnrichments).
		Msg("pipeline complete")
	return out, stats
}
