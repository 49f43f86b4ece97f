package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/iris-batch/internal/config"
	"github.com/kozaktomas/iris-batch/internal/database"
)

func init() {
	database.RegisterBackend("mysql", Open)
	database.RegisterBackend("mariadb", Open)
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// DSN converts a mysql:// or mariadb:// URL into a go-sql-driver DSN.
// Query parameters are passed through as driver params; parseTime is always on.
func DSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse MariaDB URL: %w", err)
	}
	if u.Host == "" {
		return "", errors.New("MariaDB URL has no host")
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	for key, values := range u.Query() {
		if len(values) == 0 || key == "parseTime" {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params[key] = values[0]
	}

	return cfg.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB URL is required")
	}
	dsn, err := DSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS verification_runs (
		id                 CHAR(36) PRIMARY KEY,
		started_at         DATETIME(3) NOT NULL,
		duration_ms        BIGINT NOT NULL,
		input_file         TEXT NOT NULL,
		output_file        TEXT NOT NULL,
		matching_threshold INT NOT NULL,
		subjects           INT NOT NULL,
		populated          INT NOT NULL,
		skipped            INT NOT NULL,
		failed             INT NOT NULL,
		pairs              INT NOT NULL,
		ok                 INT NOT NULL,
		errors             INT NOT NULL,
		INDEX idx_verification_runs_started_at (started_at)
	)`,
	`CREATE TABLE IF NOT EXISTS verification_results (
		run_id  CHAR(36) NOT NULL,
		row_num INT NOT NULL,
		status  VARCHAR(16) NOT NULL,
		iris1   TEXT NOT NULL,
		iris2   TEXT NOT NULL,
		label   TEXT NOT NULL,
		score   DOUBLE NOT NULL,
		PRIMARY KEY (run_id, row_num),
		FOREIGN KEY (run_id) REFERENCES verification_runs(id) ON DELETE CASCADE
	)`,
}

// EnsureSchema creates the archive tables when missing.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Open connects, ensures the schema and returns the run repository.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.RunRepository, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRunRepository(pool), nil
}
