package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/iris-batch/internal/constants"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type DatasetConfig struct {
	Root         string `yaml:"root"`          // image paths in the pair list are relative to this
	TemplatesDir string `yaml:"templates_dir"` // relative to Root unless absolute
}

// TemplatesPath returns the absolute-or-root-relative template directory.
func (c *DatasetConfig) TemplatesPath() string {
	dir := c.TemplatesDir
	if dir == "" {
		dir = constants.TemplatesSubdir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Root, dir)
}

type EngineConfig struct {
	URL               string        `yaml:"url"`
	Licenses          []string      `yaml:"licenses"`
	TrialMode         bool          `yaml:"trial_mode"`
	MatchingThreshold int           `yaml:"matching_threshold"` // passed through, never interpreted here
	LivenessThreshold int           `yaml:"liveness_threshold"`
	Concurrency       int           `yaml:"concurrency"`
	Timeout           time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // postgres:// or mysql:// (optional, enables run archive)
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // listen address for /metrics, empty disables
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegInt is like envInt but accepts 0, for engine thresholds where 0 is
// a meaningful setting.
func envNonNegInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load returns the configuration from the embedded defaults overridden by
// environment variables.
func Load() *Config {
	cfg := defaults()
	applyEnv(cfg)
	return cfg
}

// LoadFile is like Load but layers the YAML file at path between the embedded
// defaults and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Dataset.Root = envString("DATASET_DIR", cfg.Dataset.Root)
	cfg.Dataset.TemplatesDir = envString("TEMPLATES_DIR", cfg.Dataset.TemplatesDir)

	cfg.Engine.URL = envString("ENGINE_URL", cfg.Engine.URL)
	cfg.Engine.Licenses = envList("ENGINE_LICENSES", cfg.Engine.Licenses)
	if len(cfg.Engine.Licenses) == 0 {
		cfg.Engine.Licenses = constants.DefaultLicenses
	}
	cfg.Engine.TrialMode = envBool("ENGINE_TRIAL_MODE", cfg.Engine.TrialMode)
	cfg.Engine.MatchingThreshold = envNonNegInt("MATCHING_THRESHOLD", cfg.Engine.MatchingThreshold)
	cfg.Engine.LivenessThreshold = envNonNegInt("ENGINE_LIVENESS_THRESHOLD", cfg.Engine.LivenessThreshold)
	cfg.Engine.Concurrency = envInt("ENGINE_CONCURRENCY", cfg.Engine.Concurrency)
	if cfg.Engine.Concurrency <= 0 {
		cfg.Engine.Concurrency = constants.WorkerPoolSize
	}
	cfg.Engine.Timeout = envDuration("ENGINE_TIMEOUT", cfg.Engine.Timeout)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Metrics.Addr = envString("METRICS_ADDR", cfg.Metrics.Addr)
}
