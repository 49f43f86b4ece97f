package database

import (
	"context"

	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

// RunReader provides read-only access to archived runs
type RunReader interface {
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]StoredRun, error)
	// GetResults returns the result rows of a run in input order
	GetResults(ctx context.Context, runID string) ([]pairlist.ResultRow, error)
}

// RunWriter archives runs
type RunWriter interface {
	// SaveRun stores the run and its rows in one transaction
	SaveRun(ctx context.Context, run StoredRun, rows []pairlist.ResultRow) error
}

// RunRepository is implemented by every backend
type RunRepository interface {
	RunReader
	RunWriter
	Close() error
}
