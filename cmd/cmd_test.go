package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/iris-batch/internal/config"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestApplyDatasetFlags(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dataset.Root = "from-env"
	cfg.Engine.Concurrency = 4

	require.NoError(t, verifyCmd.Flags().Set("dataset-dir", "from-flag"))
	require.NoError(t, verifyCmd.Flags().Set("concurrency", "9"))
	t.Cleanup(func() {
		_ = verifyCmd.Flags().Set("dataset-dir", "")
		_ = verifyCmd.Flags().Set("concurrency", "0")
	})

	applyDatasetFlags(verifyCmd, cfg)
	assert.Equal(t, "from-flag", cfg.Dataset.Root)
	assert.Equal(t, 9, cfg.Engine.Concurrency)
}

func TestApplyDatasetFlags_WithoutConcurrencyFlag(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Concurrency = 4

	applyDatasetFlags(cacheStatusCmd, cfg)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
}

func TestSessionConfig(t *testing.T) {
	cfg := &config.EngineConfig{
		Licenses:          []string{"IrisClient"},
		TrialMode:         true,
		MatchingThreshold: 48,
	}
	sc := sessionConfig(cfg)
	assert.Equal(t, []string{"IrisClient"}, sc.Licenses)
	assert.True(t, sc.TrialMode)
	assert.Equal(t, 48, sc.MatchingThreshold)
	assert.Equal(t, 0, sc.LivenessThreshold)
}

func TestVersionInfo(t *testing.T) {
	info := versionInfo()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, "v1", info.EngineAPI)
	assert.Equal(t, CommitSHA, info.Commit)
	assert.NotEmpty(t, info.GoVersion)
}
