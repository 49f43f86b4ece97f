package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/iris-batch/internal/config"
)

// Opener connects a backend and applies its schema.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (RunRepository, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers an opener for a URL scheme.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(scheme string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[scheme] = open
}

// Schemes returns the registered URL schemes, sorted.
func Schemes() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	schemes := make([]string, 0, len(backends))
	for s := range backends {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open connects to the backend selected by the scheme of cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (RunRepository, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required: DATABASE_URL is not set")
	}

	scheme, _, ok := strings.Cut(cfg.URL, "://")
	if !ok {
		return nil, fmt.Errorf("database URL has no scheme, expected one of %v", Schemes())
	}

	backendsMu.RLock()
	open, found := backends[strings.ToLower(scheme)]
	backendsMu.RUnlock()
	if !found {
		return nil, fmt.Errorf("unsupported database scheme %q, expected one of %v", scheme, Schemes())
	}

	repo, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", scheme, err)
	}
	return repo, nil
}
