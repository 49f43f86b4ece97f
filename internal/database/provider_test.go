package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/iris-batch/internal/config"
	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

type fakeRepo struct {
	url string
}

func (f *fakeRepo) ListRuns(context.Context, int) ([]StoredRun, error) { return nil, nil }
func (f *fakeRepo) GetResults(context.Context, string) ([]pairlist.ResultRow, error) {
	return nil, nil
}
func (f *fakeRepo) SaveRun(context.Context, StoredRun, []pairlist.ResultRow) error { return nil }
func (f *fakeRepo) Close() error                                                   { return nil }

func TestOpen_SelectsBackendByScheme(t *testing.T) {
	RegisterBackend("fake", func(ctx context.Context, cfg *config.DatabaseConfig) (RunRepository, error) {
		return &fakeRepo{url: cfg.URL}, nil
	})

	repo, err := Open(context.Background(), &config.DatabaseConfig{URL: "FAKE://somewhere"})
	require.NoError(t, err)

	fake, ok := repo.(*fakeRepo)
	require.True(t, ok)
	assert.Equal(t, "FAKE://somewhere", fake.url)
	assert.Contains(t, Schemes(), "fake")
}

func TestOpen_Errors(t *testing.T) {
	RegisterBackend("broken", func(context.Context, *config.DatabaseConfig) (RunRepository, error) {
		return nil, errors.New("connection refused")
	})

	tests := []struct {
		name string
		cfg  *config.DatabaseConfig
	}{
		{"nil config", nil},
		{"empty url", &config.DatabaseConfig{}},
		{"no scheme", &config.DatabaseConfig{URL: "localhost:5432"}},
		{"unknown scheme", &config.DatabaseConfig{URL: "oracle://db"}},
		{"opener failure", &config.DatabaseConfig{URL: "broken://db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}
