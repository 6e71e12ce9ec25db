package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/conversion-cli/internal/analysis"
	"github.com/sells-group/conversion-cli/internal/geo"
	"github.com/sells-group/conversion-cli/internal/zone"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testResults() []analysis.Result {
	z := zone.Zone{
		ID:           "midtown",
		Name:         "Midtown",
		Center:       geo.Point{Lat: 29.7499, Lng: -95.3582},
		RadiusMeters: 1000,
	}
	res := analysis.EmptyResult(z)
	res.ConversionCandidates = []analysis.ScoredCandidate{
		{
			Candidate: analysis.Candidate{
				Address:  "1600 Smith St",
				Location: z.Center,
				Source:   analysis.SourceBuildings,
				ZoneID:   z.ID,
			},
			ConversionScore: 0.39,
		},
	}
	res.Summary.TotalCandidates = 1
	return []analysis.Result{*res}
}

func TestSQLite_CreateRun_And_GetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"midtown", "downtown"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusQueued, run.Status)
	assert.Equal(t, []string{"midtown", "downtown"}, run.Zones)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, fetched.ID)
	assert.Equal(t, []string{"midtown", "downtown"}, fetched.Zones)
	assert.Nil(t, fetched.Results)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"midtown"})
	require.NoError(t, err)

	err = st.UpdateRunStatus(ctx, run.ID, RunStatusRunning)
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, fetched.Status)
}

func TestSQLite_UpdateRunStatus_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "nonexistent", RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"midtown"})
	require.NoError(t, err)

	err = st.CompleteRun(ctx, run.ID, testResults())
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, fetched.Status)
	require.Len(t, fetched.Results, 1)
	assert.Equal(t, "midtown", fetched.Results[0].Zone.ID)
	require.Len(t, fetched.Results[0].ConversionCandidates, 1)
	assert.Equal(t, "1600 Smith St", fetched.Results[0].ConversionCandidates[0].Address)
	assert.InDelta(t, 0.39, fetched.Results[0].ConversionCandidates[0].ConversionScore, 1e-9)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"midtown"})
	require.NoError(t, err)

	err = st.FailRun(ctx, run.ID, eris.New("layer file unreadable"))
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, fetched.Status)
	assert.Contains(t, fetched.Error, "layer file unreadable")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, []string{"midtown"})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, []string{"downtown"})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"midtown"})
	require.NoError(t, err)
	err = st.CompleteRun(ctx, run.ID, testResults())
	require.NoError(t, err)

	// A second run that stays queued.
	_, err = st.CreateRun(ctx, []string{"downtown"})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Status: RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_ListRuns_FilterByZone(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"midtown", "eado"})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, []string{"downtown"})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Zone: "eado", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Migrate was already called in newTestSQLiteStore; calling again
	// should not error.
	err := st.Migrate(context.Background())
	require.NoError(t, err)
}
