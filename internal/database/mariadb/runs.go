package mariadb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/iris-batch/internal/database"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

// resultBatch caps rows per multi-row INSERT.
const resultBatch = 500

// RunRepository archives verification runs in MariaDB
type RunRepository struct {
	pool *Pool
}

var _ database.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new MariaDB run repository
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun stores the run row and its results in one transaction.
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.StartedAt.UTC(), run.Duration.Milliseconds(), run.InputFile, run.OutputFile, run.MatchingThreshold,
		run.Subjects, run.Populated, run.Skipped, run.Failed, run.Pairs, run.OK, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(rows); start += resultBatch {
		end := min(start+resultBatch, len(rows))
		query, args := resultsInsert(run.ID, start, rows[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert results %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func resultsInsert(runID string, offset int, rows []pairlist.ResultRow) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO verification_results (run_id, row_num, status, iris1, iris2, label, score) VALUES ")
	args := make([]any, 0, len(rows)*7)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, runID, offset+i, row.Status, row.Left, row.Right, row.Label, row.Score)
	}
	return sb.String(), args
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]database.StoredRun, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, input_file, output_file, matching_threshold,
		       subjects, populated, skipped, failed, pairs, ok, errors
		FROM verification_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []database.StoredRun
	for rows.Next() {
		var run database.StoredRun
		var durationMs int64
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &durationMs, &run.InputFile, &run.OutputFile, &run.MatchingThreshold,
			&run.Subjects, &run.Populated, &run.Skipped, &run.Failed, &run.Pairs, &run.OK, &run.Errors,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetResults returns the result rows of a run in input order
func (r *RunRepository) GetResults(ctx context.Context, runID string) ([]pairlist.ResultRow, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT status, iris1, iris2, label, score
		FROM verification_results
		WHERE run_id = ?
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
