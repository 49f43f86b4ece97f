package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATASET_DIR", "TEMPLATES_DIR", "ENGINE_LICENSES", "MATCHING_THRESHOLD", "ENGINE_CONCURRENCY", "ENGINE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Engine.MatchingThreshold != 48 {
		t.Errorf("expected matching threshold 48, got %d", cfg.Engine.MatchingThreshold)
	}
	if len(cfg.Engine.Licenses) != 3 || cfg.Engine.Licenses[0] != "IrisClient" {
		t.Errorf("unexpected default licenses: %v", cfg.Engine.Licenses)
	}
	if cfg.Engine.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %s", cfg.Engine.Timeout)
	}
	if cfg.Engine.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Dataset.TemplatesDir != "templates" {
		t.Errorf("expected templates dir 'templates', got '%s'", cfg.Dataset.TemplatesDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATASET_DIR", "/data/casia")
	t.Setenv("ENGINE_LICENSES", " IrisExtractor ,, IrisMatcher")
	t.Setenv("MATCHING_THRESHOLD", "60")
	t.Setenv("ENGINE_CONCURRENCY", "2")
	t.Setenv("ENGINE_TRIAL_MODE", "false")
	t.Setenv("ENGINE_TIMEOUT", "5s")

	cfg := Load()

	if cfg.Dataset.Root != "/data/casia" {
		t.Errorf("expected root '/data/casia', got '%s'", cfg.Dataset.Root)
	}
	if len(cfg.Engine.Licenses) != 2 || cfg.Engine.Licenses[1] != "IrisMatcher" {
		t.Errorf("unexpected licenses: %v", cfg.Engine.Licenses)
	}
	if cfg.Engine.MatchingThreshold != 60 {
		t.Errorf("expected threshold 60, got %d", cfg.Engine.MatchingThreshold)
	}
	if cfg.Engine.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.TrialMode {
		t.Error("expected trial mode to be disabled")
	}
	if cfg.Engine.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Engine.Timeout)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("MATCHING_THRESHOLD", "abc")
	t.Setenv("ENGINE_CONCURRENCY", "-3")
	t.Setenv("ENGINE_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Engine.MatchingThreshold != 48 {
		t.Errorf("expected fallback threshold 48, got %d", cfg.Engine.MatchingThreshold)
	}
	if cfg.Engine.Concurrency != 4 {
		t.Errorf("expected fallback concurrency 4, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.Timeout != 30*time.Second {
		t.Errorf("expected fallback timeout 30s, got %s", cfg.Engine.Timeout)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("DATASET_DIR", "")
	t.Setenv("MATCHING_THRESHOLD", "")

	path := filepath.Join(t.TempDir(), "iris.yaml")
	content := "dataset:\n  root: /srv/iris\nengine:\n  matching_threshold: 36\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Dataset.Root != "/srv/iris" {
		t.Errorf("expected root '/srv/iris', got '%s'", cfg.Dataset.Root)
	}
	if cfg.Engine.MatchingThreshold != 36 {
		t.Errorf("expected threshold 36, got %d", cfg.Engine.MatchingThreshold)
	}
	// Unset keys keep the embedded defaults
	if cfg.Engine.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.Engine.Timeout)
	}
}

func TestLoad_ZeroThresholdsPassThrough(t *testing.T) {
	t.Setenv("MATCHING_THRESHOLD", "0")
	t.Setenv("ENGINE_LIVENESS_THRESHOLD", "0")

	cfg := Load()

	if cfg.Engine.MatchingThreshold != 0 {
		t.Errorf("expected threshold 0, got %d", cfg.Engine.MatchingThreshold)
	}
	if cfg.Engine.LivenessThreshold != 0 {
		t.Errorf("expected liveness threshold 0, got %d", cfg.Engine.LivenessThreshold)
	}
}

func TestLoad_LivenessThreshold(t *testing.T) {
	t.Setenv("ENGINE_LIVENESS_THRESHOLD", "25")

	cfg := Load()

	if cfg.Engine.LivenessThreshold != 25 {
		t.Errorf("expected liveness threshold 25, got %d", cfg.Engine.LivenessThreshold)
	}
}

func TestLoadFile_ZeroThreshold(t *testing.T) {
	t.Setenv("MATCHING_THRESHOLD", "")

	path := filepath.Join(t.TempDir(), "iris.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  matching_threshold: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.MatchingThreshold != 0 {
		t.Errorf("expected threshold 0 from file, got %d", cfg.Engine.MatchingThreshold)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestTemplatesPath(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatasetConfig
		want string
	}{
		{"relative", DatasetConfig{Root: "/data", TemplatesDir: "templates"}, "/data/templates"},
		{"absolute", DatasetConfig{Root: "/data", TemplatesDir: "/cache/t"}, "/cache/t"},
		{"empty uses default", DatasetConfig{Root: "/data"}, "/data/templates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.TemplatesPath(); got != tt.want {
				t.Errorf("expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}
