// Package obsetl cleans facilitator observation tables and scores each
// observation for emotional regulation and social integration.
package obsetl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/pipeline"
	"github.com/cognicore/obsetl/pkg/obsetl/record"
	"github.com/cognicore/obsetl/pkg/obsetl/report"
	"github.com/cognicore/obsetl/pkg/obsetl/store"
	"github.com/cognicore/obsetl/pkg/obsetl/tabular"
)

// Engine is the main facade over the cleaning pipeline and run store
type Engine struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	columns  tabular.Columns
	ids      *store.IDSource
	logger   zerolog.Logger
	now      func() time.Time
}

// Options configures an Engine
type Options struct {
	// Store is optional; without it runs are not persisted.
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Columns  tabular.Columns
	Logger   zerolog.Logger
	Now      func() time.Time
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	cols := opts.Columns
	if cols == (tabular.Columns{}) {
		cols = tabular.DefaultColumns()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		columns:  cols,
		ids:      store.NewIDSource(),
		logger:   opts.Logger,
		now:      now,
	}
}

// Close cleanly shuts down the Engine
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// CleanRequest names the input table and where to write results. Empty
// output paths are skipped.
type CleanRequest struct {
	InputPath  string
	OutputCSV  string
	OutputJSON string
}

// Clean reads the input table, runs every row through the pipeline,
// writes the outputs and, when a store is configured, persists the run.
func (e *Engine) Clean(ctx context.Context, req CleanRequest) (store.Run, error) {
	f, err := os.Open(req.InputPath)
	if err != nil {
		return store.Run{}, fmt.Errorf("open input: %w", err)
	}
	table, err := tabular.ReadCSV(f, e.columns)
	f.Close()
	if err != nil {
		return store.Run{}, fmt.Errorf("read %s: %w", req.InputPath, err)
	}
	e.logger.Info().Str("input", req.InputPath).Int("rows", len(table.Rows)).Msg("loaded input")

	started := e.now()
	recs, stats := e.pipeline.Run(ctx, table.Rows)
	run := store.Run{
		ID:         e.ids.Next(started),
		Input:      req.InputPath,
		StartedAt:  started,
		FinishedAt: e.now(),
		Stats:      stats,
		Records:    recs,
	}

	if req.OutputCSV != "" {
		err := writeFile(req.OutputCSV, func(w io.Writer) error {
			return tabular.WriteCSV(w, table.Header, e.columns, recs)
		})
		if err != nil {
			return run, err
		}
	}
	if req.OutputJSON != "" {
		err := writeFile(req.OutputJSON, func(w io.Writer) error {
			return tabular.WriteJSON(w, table.Header, e.columns, recs)
		})
		if err != nil {
			return run, err
		}
	}

	if e.store != nil {
		if err := e.store.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("save run: %w", err)
		}
	}

	e.logger.Info().
		Str("run", run.ID).
		Str("rows", humanize.Comma(int64(stats.Rows))).
		Str("fallbacks", fmt.Sprintf("%s of %s", humanize.Comma(int64(stats.FallbackEnrichments)), humanize.Comma(int64(stats.Rows)))).
		Str("elapsed", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()).
		Msg("clean finished")
	return run, nil
}

// ReportRequest selects the records to summarize: a cleaned CSV, or a
// stored run when RunID is set.
type ReportRequest struct {
	InputCSV string
	RunID    string
	OutDir   string
	// Table, when set, receives the summary as an aligned text table.
	Table io.Writer
}

// ReportResult lists what Report produced.
type ReportResult struct {
	Summaries []report.Summary
	Files     []string
}

// Report aggregates records per child and writes the summary table and charts.
func (e *Engine) Report(ctx context.Context, req ReportRequest) (ReportResult, error) {
	recs, err := e.reportRecords(ctx, req)
	if err != nil {
		return ReportResult{}, err
	}

	agg := report.NewAggregator()
	for _, rec := range recs {
		agg.Process(rec)
	}
	result := ReportResult{Summaries: agg.Summaries()}

	if req.OutDir != "" {
		if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
			return result, fmt.Errorf("create output dir: %w", err)
		}
		summaryPath := filepath.Join(req.OutDir, report.SummaryFile)
		err := writeFile(summaryPath, func(w io.Writer) error {
			return report.WriteSummaryCSV(w, result.Summaries)
		})
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, summaryPath)

		charts, err := report.WriteCharts(req.OutDir, result.Summaries, agg.Distribution())
		result.Files = append(result.Files, charts...)
		if err != nil {
			return result, err
		}
	}

	if req.Table != nil {
		if err := report.WriteTable(req.Table, result.Summaries); err != nil {
			return result, err
		}
	}

	e.logger.Info().
		Int("records", len(recs)).
		Int("children", len(result.Summaries)).
		Strs("files", result.Files).
		Msg("report written")
	return result, nil
}

func (e *Engine) reportRecords(ctx context.Context, req ReportRequest) ([]record.Enriched, error) {
	if req.RunID != "" {
		if e.store == nil {
			return nil, fmt.Errorf("report run %s: %w", req.RunID, internalerr.ErrStoreUnavailable)
		}
		return e.store.Records(ctx, req.RunID)
	}
	if req.InputCSV == "" {
		return nil, fmt.Errorf("%w: report needs an input file or a run id", internalerr.ErrInvalidInput)
	}

	f, err := os.Open(req.InputCSV)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	recs, err := tabular.ReadEnrichedCSV(f, e.columns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.InputCSV, err)
	}
	return recs, nil
}

// Runs lists stored runs, newest first.
func (e *Engine) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	if e.store == nil {
		return nil, internalerr.ErrStoreUnavailable
	}
	return e.store.ListRuns(ctx, limit)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
