//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/iris-batch/internal/config"
	"github.com/kozaktomas/iris-batch/internal/database"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestMigrate_Idempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001_verification_runs.sql" {
		t.Errorf("applied = %v, want [001_verification_runs.sql]", applied)
	}
}

func TestRunRepository_SaveAndRead(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewRunRepository(pool)

	older := database.StoredRun{
		ID:                uuid.NewString(),
		StartedAt:         time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond),
		Duration:          1500 * time.Millisecond,
		InputFile:         "old.csv",
		OutputFile:        "old-out.csv",
		MatchingThreshold: 48,
		Pairs:             0,
	}
	if err := repo.SaveRun(ctx, older, nil); err != nil {
		t.Fatalf("SaveRun(older) failed: %v", err)
	}

	rows := []pairlist.ResultRow{
		{Status: "OK", Left: "a.png", Right: "b.png", Label: "genuine", Score: 97.5},
		{Status: "ERROR", Left: "a.png", Right: "c.png", Label: "impostor", Score: 0},
	}
	newer := database.StoredRun{
		ID:                uuid.NewString(),
		StartedAt:         time.Now().UTC().Truncate(time.Millisecond),
		Duration:          2 * time.Second,
		InputFile:         "pairs.csv",
		OutputFile:        "results.csv",
		MatchingThreshold: 48,
		Subjects:          3,
		Populated:         2,
		Failed:            1,
		Pairs:             2,
		OK:                1,
		Errors:            1,
	}
	if err := repo.SaveRun(ctx, newer, rows); err != nil {
		t.Fatalf("SaveRun(newer) failed: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
	if runs[0].Duration != newer.Duration || runs[0].Errors != 1 || runs[0].Subjects != 3 {
		t.Errorf("unexpected run fields: %+v", runs[0])
	}

	limited, err := repo.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 run with limit, got %d", len(limited))
	}

	got, err := repo.GetResults(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d results, got %d", len(rows), len(got))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}
