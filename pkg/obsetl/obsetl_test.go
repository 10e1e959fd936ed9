package obsetl

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/obsetl/pkg/obsetl/enrich"
	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/pipeline"
	"github.com/cognicore/obsetl/pkg/obsetl/report"
	"github.com/cognicore/obsetl/pkg/obsetl/store/memstore"
)

const rawTable = `Child_ID,Session_Date,Observation_Text,Facilitator
c-001,20/10/2025,"- child was w/ peers
- stayed calm",Ann
,last weekend,,Bo
C-002; C-003,"Oct 21, 2025",played alone,Ann
`

func fakeCompleter(t *testing.T) enrich.Completer {
	return enrich.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Child was with peers stayed calm"):
			return "```json\n{\"emotional_regulation_score\": 4, \"social_integration_score\": 5, \"resilience_notes_summary\": \"Calm with peers\"}\n```", nil
		case strings.Contains(prompt, "Played alone"):
			return `{"emotional_regulation_score": "2", "social_integration_score": 9, "resilience_notes_summary": ""}`, nil
		}
		t.Errorf("unexpected prompt: %s", prompt)
		return "", nil
	})
}

func newEngine(t *testing.T) (*Engine, *memstore.Store) {
	st := memstore.New()
	clock := time.Date(2025, 10, 23, 8, 0, 0, 0, time.UTC)
	eng := New(Options{
		Store: st,
		Pipeline: pipeline.New(pipeline.Options{
			Enricher: enrich.New(fakeCompleter(t), enrich.Options{}),
		}),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	t.Cleanup(func() { eng.Close() })
	return eng, st
}

func TestCleanWritesOutputsAndPersistsRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(input, []byte(rawTable), 0o644))

	eng, st := newEngine(t)
	ctx := context.Background()
	run, err := eng.Clean(ctx, CleanRequest{
		InputPath:  input,
		OutputCSV:  filepath.Join(dir, "out", "cleaned.csv"),
		OutputJSON: filepath.Join(dir, "out", "cleaned.json"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 3, run.Stats.Rows)
	assert.Equal(t, 1, run.Stats.UnknownIDs)
	assert.Equal(t, 1, run.Stats.UnparseableDates)
	assert.Equal(t, 1, run.Stats.FallbackEnrichments)

	csvOut, err := os.ReadFile(filepath.Join(dir, "out", "cleaned.csv"))
	require.NoError(t, err)
	want := "Child_ID,Session_Date,Observation_Text,Facilitator,Emotional_Regulation_Score,Social_Integration_Score,Resilience_Notes_Summary\n" +
		"C001,2025-10-20,Child was with peers stayed calm,Ann,4,5,Calm with peers\n" +
		"UNKNOWN,,,Bo,3,3,No observation data provided\n" +
		"C002,2025-10-21,Played alone,Ann,2,5,No summary\n"
	assert.Equal(t, want, string(csvOut))

	jsonOut, err := os.ReadFile(filepath.Join(dir, "out", "cleaned.json"))
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(jsonOut, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "C001", rows[0]["Child_ID"])
	assert.Equal(t, float64(5), rows[2]["Social_Integration_Score"])

	stored, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, input, stored.Input)
	assert.Equal(t, run.Stats, stored.Stats)

	runs, err := eng.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestCleanMissingColumnAbortsBeforeEnrichment(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(input, []byte("Child_ID,Observation_Text\nc1,hello\n"), 0o644))

	calls := 0
	eng := New(Options{
		Pipeline: pipeline.New(pipeline.Options{
			Enricher: enrich.New(enrich.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
				calls++
				return "{}", nil
			}), enrich.Options{}),
		}),
	})

	_, err := eng.Clean(context.Background(), CleanRequest{InputPath: input, OutputCSV: filepath.Join(dir, "out.csv")})
	require.ErrorIs(t, err, internalerr.ErrMissingColumn)
	assert.Zero(t, calls)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}

func TestReportFromCleanedCSVAndStoredRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	cleaned := filepath.Join(dir, "cleaned.csv")
	require.NoError(t, os.WriteFile(input, []byte(rawTable), 0o644))

	eng, _ := newEngine(t)
	ctx := context.Background()
	run, err := eng.Clean(ctx, CleanRequest{InputPath: input, OutputCSV: cleaned})
	require.NoError(t, err)

	var table bytes.Buffer
	fromCSV, err := eng.Report(ctx, ReportRequest{InputCSV: cleaned, OutDir: filepath.Join(dir, "csv"), Table: &table})
	require.NoError(t, err)
	require.Len(t, fromCSV.Summaries, 3)
	assert.Equal(t, "C001", fromCSV.Summaries[0].Identifier)
	assert.Equal(t, "UNKNOWN", fromCSV.Summaries[2].Identifier)
	assert.Len(t, fromCSV.Files, 4)
	assert.FileExists(t, filepath.Join(dir, "csv", report.SummaryFile))
	assert.Contains(t, table.String(), "C002")

	fromRun, err := eng.Report(ctx, ReportRequest{RunID: run.ID})
	require.NoError(t, err)
	assert.Equal(t, fromCSV.Summaries, fromRun.Summaries)
	assert.Empty(t, fromRun.Files)
}

func TestReportErrors(t *testing.T) {
	eng := New(Options{})
	ctx := context.Background()

	_, err := eng.Report(ctx, ReportRequest{RunID: "r1"})
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)

	_, err = eng.Report(ctx, ReportRequest{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = eng.Runs(ctx, 0)
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
}
