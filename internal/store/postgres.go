package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/conversion-cli/internal/analysis"
	"github.com/sells-group/conversion-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, zones, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET results = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, zones, status, results, error, created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	zones      JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	results    JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_zones ON runs USING GIN (zones);

CREATE TABLE IF NOT EXISTS run_candidates (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	zone_id          TEXT NOT NULL,
	address          TEXT NOT NULL,
	lat              DOUBLE PRECISION NOT NULL,
	lng              DOUBLE PRECISION NOT NULL,
	source           TEXT NOT NULL,
	base_score       DOUBLE PRECISION NOT NULL,
	conversion_score DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_candidates_run_id ON run_candidates(run_id);
CREATE INDEX IF NOT EXISTS idx_run_candidates_zone ON run_candidates(zone_id, conversion_score DESC);
`

// runCandidateColumns is the COPY column list for run_candidates.
var runCandidateColumns = []string{
	"run_id", "zone_id", "address", "lat", "lng", "source", "base_score", "conversion_score",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, zones []string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	zonesJSON, err := json.Marshal(zones)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal zones")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, zones, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, zonesJSON, string(RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Zones:     zones,
		Status:    RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// CompleteRun stores the full results payload on the run row and
// bulk-copies the flattened candidate rows for SQL-side querying.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, results []analysis.Result) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET results = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultsJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}

	rows := candidateRows(runID, results)
	if _, err := db.CopyFrom(ctx, s.pool, "run_candidates", runCandidateColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy candidates for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		msg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var zonesJSON []byte
	var resultsJSON *[]byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, zones, status, results, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &zonesJSON, &r.Status, &resultsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(zonesJSON, &r.Zones); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal zones")
	}
	if resultsJSON != nil {
		if err := json.Unmarshal(*resultsJSON, &r.Results); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal results")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, zones, status, results, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Zone != "" {
		query += fmt.Sprintf(` AND jsonb_exists(zones, $%d)`, argIdx)
		args = append(args, filter.Zone)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var zonesJSON []byte
		var resultsJSON *[]byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &zonesJSON, &r.Status, &resultsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(zonesJSON, &r.Zones); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal zones")
		}
		if resultsJSON != nil {
			if err := json.Unmarshal(*resultsJSON, &r.Results); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal results")
			}
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// TopCandidates queries the flattened candidate rows for a zone across
// completed runs, most recent first.
func (s *PostgresStore) TopCandidates(ctx context.Context, zoneID string, limit int) ([]analysis.Candidate, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.pool.Query(ctx,
		`SELECT address, lat, lng, source, base_score FROM run_candidates
		 WHERE zone_id = $1 ORDER BY conversion_score DESC LIMIT $2`,
		zoneID, limit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: top candidates")
	}
	defer rows.Close()

	var out []analysis.Candidate
	for rows.Next() {
		var c analysis.Candidate
		if err := rows.Scan(&c.Address, &c.Location.Lat, &c.Location.Lng, &c.Source, &c.BaseScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		c.ZoneID = zoneID
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: top candidates iterate")
}

func candidateRows(runID string, results []analysis.Result) [][]any {
	var rows [][]any
	for _, res := range results {
		for _, sc := range res.ConversionCandidates {
			rows = append(rows, []any{
				runID, res.Zone.ID, sc.Address,
				sc.Location.Lat, sc.Location.Lng,
				sc.Source, sc.BaseScore, sc.ConversionScore,
			})
		}
	}
	return rows
}
