package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/obsetl/pkg/obsetl/store"
	"github.com/cognicore/obsetl/pkg/obsetl/store/storetest"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreBehaviour(t *testing.T) {
	storetest.Exercise(t, openTemp)
}

func TestRunsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	ids := store.NewIDSource()
	run := storetest.SampleRun(ids.Next(time.Now()), time.Now())
	require.NoError(t, st.SaveRun(ctx, run))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	recs, err := st.Records(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ann", recs[0].Raw.Metadata["Facilitator"])
	assert.Equal(t, "2025-10-20", recs[0].Normalized.SessionDate.String())
	assert.True(t, recs[1].Normalized.SessionDate.IsZero())
}
