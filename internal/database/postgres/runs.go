package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/iris-batch/internal/database"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

// RunRepository archives verification runs in PostgreSQL
type RunRepository struct {
	pool *Pool
}

var _ database.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun stores the run row and bulk-loads its results with COPY.
func (r *RunRepository) SaveRun(ctx context.Context, run database.StoredRun, rows []pairlist.ResultRow) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verification_runs (
			id, started_at, duration_ms, input_file, output_file, matching_threshold,
			subjects, populated, skipped, failed, pairs, ok, errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		run.ID, run.StartedAt, run.Duration.Milliseconds(), run.InputFile, run.OutputFile, run.MatchingThreshold,
		run.Subjects, run.Populated, run.Skipped, run.Failed, run.Pairs, run.OK, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("verification_results",
		"run_id", "row_num", "status", "iris1", "iris2", "label", "score"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, run.ID, i, row.Status, row.Left, row.Right, row.Label, row.Score); err != nil {
			stmt.Close()
			return fmt.Errorf("copy result %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]database.StoredRun, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, input_file, output_file, matching_threshold,
		       subjects, populated, skipped, failed, pairs, ok, errors
		FROM verification_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []database.StoredRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (database.StoredRun, error) {
	var run database.StoredRun
	var durationMs int64
	err := rows.Scan(
		&run.ID, &run.StartedAt, &durationMs, &run.InputFile, &run.OutputFile, &run.MatchingThreshold,
		&run.Subjects, &run.Populated, &run.Skipped, &run.Failed, &run.Pairs, &run.OK, &run.Errors,
	)
	if err != nil {
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}

// GetResults returns the result rows of a run in input order
func (r *RunRepository) GetResults(ctx context.Context, runID string) ([]pairlist.ResultRow, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT status, iris1, iris2, label, score
		FROM verification_results
		WHERE run_id = $1
		ORDER BY row_num
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []pairlist.ResultRow
	for rows.Next() {
		var row pairlist.ResultRow
		if err := rows.Scan(&row.Status, &row.Left, &row.Right, &row.Label, &row.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Close closes the underlying pool
func (r *RunRepository) Close() error {
	return r.pool.Close()
}
