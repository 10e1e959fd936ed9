// Package storetest checks that a store.Store implementation behaves
// like the others.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/record"
	"github.com/cognicore/obsetl/pkg/obsetl/store"
)

// SampleRun builds a small finished run starting at started.
func SampleRun(id string, started time.Time) store.Run {
	recs := []record.Enriched{
		{
			Raw: record.Raw{Index: 0, Identifier: "c-001", SessionDate: "20/10/2025", Observation: "- calm", Metadata: map[string]string{"Facilitator": "Ann"}},
			Normalized: record.Normalized{
				Identifier:  "C001",
				SessionDate: record.Date{Year: 2025, Month: time.October, Day: 20},
				Text:        "Calm",
			},
			Enrichment: record.Enrichment{EmotionalRegulation: 4, SocialIntegration: 5, Summary: "Calm and settled"},
		},
		{
			Raw:        record.Raw{Index: 1},
			Normalized: record.Normalized{Identifier: record.UnknownID},
			Enrichment: record.Enrichment{EmotionalRegulation: 3, SocialIntegration: 3, Summary: "No observation data provided", Fallback: record.FallbackEmptyText},
		},
	}
	return store.Run{
		ID:         id,
		Input:      "raw.csv",
		StartedAt:  started.UTC(),
		FinishedAt: started.Add(2 * time.Second).UTC(),
		Stats:      record.Tally(recs),
		Records:    recs,
	}
}

// Exercise runs the shared behaviour checks against stores built by open.
func Exercise(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		st := open(t)
		run := SampleRun("01J0000000000000000000000A", base)
		require.NoError(t, st.SaveRun(ctx, run))

		got, err := st.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, run.Input, got.Input)
		assert.True(t, run.StartedAt.Equal(got.StartedAt), "started %v != %v", run.StartedAt, got.StartedAt)
		assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
		assert.Equal(t, run.Stats, got.Stats)
		assert.Nil(t, got.Records, "headers carry no records")

		recs, err := st.Records(ctx, run.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(run.Records, recs); diff != "" {
			t.Fatalf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		st := open(t)
		run := SampleRun("01J0000000000000000000000B", base)
		require.NoError(t, st.SaveRun(ctx, run))

		run.Records = run.Records[:1]
		run.Stats = record.Tally(run.Records)
		require.NoError(t, st.SaveRun(ctx, run))

		recs, err := st.Records(ctx, run.ID)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
		got, err := st.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stats.Rows)
	})

	t.Run("list newest first", func(t *testing.T) {
		st := open(t)
		for i, id := range []string{"01J0000000000000000000000C", "01J0000000000000000000000D", "01J0000000000000000000000E"} {
			require.NoError(t, st.SaveRun(ctx, SampleRun(id, base.Add(time.Duration(i)*time.Hour))))
		}

		runs, err := st.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "01J0000000000000000000000E", runs[0].ID)
		assert.Equal(t, "01J0000000000000000000000C", runs[2].ID)

		runs, err = st.ListRuns(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("missing run", func(t *testing.T) {
		st := open(t)
		_, err := st.GetRun(ctx, "nope")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
		_, err = st.Records(ctx, "nope")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		st := open(t)
		err := st.SaveRun(ctx, store.Run{})
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	})
}
