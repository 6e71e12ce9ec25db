package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/conversion-cli/internal/analysis"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, zones, status, results, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), string(RunStatusQueued), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), []string{"midtown"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(RunStatusRunning), pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_CopiesCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET results`).
		WithArgs(pgxmock.AnyArg(), string(RunStatusComplete), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"run_candidates"}, runCandidateColumns).
		WillReturnResult(1)

	err := s.CompleteRun(context.Background(), "run-1", testResults())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET error`).
		WithArgs(assert.AnError.Error(), string(RunStatusFailed), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", assert.AnError)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TopCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"address", "lat", "lng", "source", "base_score"}).
		AddRow("1600 Smith St", 29.7520, -95.3635, analysis.SourceBuildings, 0.8).
		AddRow("800 Bell St", 29.7490, -95.3620, analysis.SourceBuildings, 0.6)

	mock.ExpectQuery(`SELECT address, lat, lng, source, base_score FROM run_candidates`).
		WithArgs("midtown", 25).
		WillReturnRows(rows)

	got, err := s.TopCandidates(context.Background(), "midtown", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1600 Smith St", got[0].Address)
	assert.Equal(t, "midtown", got[0].ZoneID)
	assert.InDelta(t, 0.6, got[1].BaseScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRows_Flattening(t *testing.T) {
	rows := candidateRows("run-1", testResults())
	require.Len(t, rows, 1)
	assert.Equal(t, "run-1", rows[0][0])
	assert.Equal(t, "midtown", rows[0][1])
	assert.Equal(t, "1600 Smith St", rows[0][2])
}

func TestCandidateRows_EmptyResults(t *testing.T) {
	assert.Empty(t, candidateRows("run-1", nil))
}
