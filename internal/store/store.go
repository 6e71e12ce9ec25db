// Package store persists analysis runs so past results can be listed,
// compared, and served without re-running the pipeline.
package store

import (
	"context"
	"time"

	"github.com/sells-group/conversion-cli/internal/analysis"
)

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded invocation of the analysis pipeline.
type Run struct {
	ID        string            `json:"id"`
	Zones     []string          `json:"zones"`
	Status    RunStatus         `json:"status"`
	Results   []analysis.Result `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Zone   string    `json:"zone,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	CreateRun(ctx context.Context, zones []string) (*Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error
	CompleteRun(ctx context.Context, runID string, results []analysis.Result) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
