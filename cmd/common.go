package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/iris-batch/internal/config"
	"github.com/kozaktomas/iris-batch/internal/engine"
	"github.com/kozaktomas/iris-batch/internal/engine/remote"
	"github.com/kozaktomas/iris-batch/internal/metrics"
	"github.com/kozaktomas/iris-batch/internal/pipeline"
	"github.com/kozaktomas/iris-batch/internal/web"
)

// loadConfig applies --config over the embedded defaults when given.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Load(), nil
	}
	return config.LoadFile(configFile)
}

// sessionConfig maps engine settings to the license session request.
func sessionConfig(cfg *config.EngineConfig) engine.SessionConfig {
	return engine.SessionConfig{
		Licenses:          cfg.Licenses,
		TrialMode:         cfg.TrialMode,
		MatchingThreshold: cfg.MatchingThreshold,
		LivenessThreshold: cfg.LivenessThreshold,
	}
}

// openEngine connects to the engine bridge and obtains the license session.
// The returned release func must be called once all engine work is done.
func openEngine(ctx context.Context, cfg *config.EngineConfig) (*remote.Client, func(), error) {
	client, err := remote.New(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Obtain(ctx, sessionConfig(cfg)); err != nil {
		return nil, nil, fmt.Errorf("failed to obtain engine session: %w", err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Release(releaseCtx); err != nil {
			slog.Warn("failed to release engine session", "error", err)
		}
	}
	return client, release, nil
}

// startStatusServer serves /metrics, /healthz and progress when addr is set.
// The returned stop func is always safe to call.
func startStatusServer(addr string, tracker *web.Tracker, m *metrics.Metrics) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	server := web.NewServer(addr, tracker, m.Handler())
	if err := server.Start(); err != nil {
		return nil, err
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("status server shutdown", "error", err)
		}
	}, nil
}

// progressReporter draws one progress bar per pipeline phase.
type progressReporter struct {
	mu    sync.Mutex
	phase pipeline.Phase
	bar   *progressbar.ProgressBar
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func (r *progressReporter) update(p pipeline.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil || p.Phase != r.phase {
		if r.bar != nil {
			_ = r.bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
		r.phase = p.Phase
		description := "Creating templates"
		if p.Phase == pipeline.PhaseMatching {
			description = "Matching pairs"
		}
		r.bar = newProgressBar(p.Total, description)
	}
	_ = r.bar.Add(1)
}

func (r *progressReporter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
		fmt.Fprintln(os.Stderr)
		r.bar = nil
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
