package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default configuration values, exported for documentation and validation.
// These mirror the orchestrator's own defaults (spec engine concurrency and
// timeout bounds), not arbitrary config-layer choices.
const (
	DefaultMaxBranches      = 8
	DefaultEngineConcurrency = 8
	DefaultTimeout           = 300 * time.Second
	DefaultMergeStrategy     = "three-way"
	DefaultSessionBackend    = "native"
	DefaultLogLevel          = "info"
	DefaultMetricsNamespace  = "branchctl"
)

// Config is the complete branchctl configuration.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Storage      StorageConfig      `yaml:"storage"`
	Session      SessionConfig      `yaml:"session"`
	Merge        MergeConfig        `yaml:"merge"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

// OrchestratorConfig bounds the Branch Manager and Parallel Execution Engine.
type OrchestratorConfig struct {
	// MaxBranches caps the number of simultaneously active branches (spec §4.4).
	MaxBranches int `yaml:"max_branches"`
	// DefaultTimeout is the advisory per-branch execution timeout (spec §4.5).
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// EngineConcurrency is validated to 1..=8. The execution engine does not
	// read it; its engine-wide bound on concurrent branch executions is fixed at 8.
	EngineConcurrency int `yaml:"engine_concurrency"`
}

// StorageConfig configures the persistence layer.
type StorageConfig struct {
	// DSN is the SQLite data source name, e.g. a file path or ":memory:".
	DSN string `yaml:"dsn"`
}

// SessionConfig configures the Session Manager.
type SessionConfig struct {
	// Root is the directory under which session working copies are materialized.
	Root string `yaml:"root"`
	// Backend selects the Session Manager implementation. Only "native" exists today.
	Backend string `yaml:"backend"`
}

// MergeConfig configures default merge behavior.
type MergeConfig struct {
	// DefaultStrategy names the merge strategy used when a branch's config
	// omits one (spec §4.3's strategy registry).
	DefaultStrategy string `yaml:"default_strategy"`
}

// LogConfig configures structured event logging.
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns a Config populated with spec-mandated defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxBranches:       DefaultMaxBranches,
			DefaultTimeout:    DefaultTimeout,
			EngineConcurrency: DefaultEngineConcurrency,
		},
		Storage: StorageConfig{
			DSN: filepath.Join(home, ".branchctl", "branchctl.db"),
		},
		Session: SessionConfig{
			Root:    filepath.Join(home, ".branchctl", "sessions"),
			Backend: DefaultSessionBackend,
		},
		Merge: MergeConfig{
			DefaultStrategy: DefaultMergeStrategy,
		},
		Log: LogConfig{
			Dir:   filepath.Join(home, ".branchctl", "logs"),
			Level: DefaultLogLevel,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultMetricsNamespace,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "branchctl",
		},
	}
}

// Load builds a Config from defaults, merges the user config
// (~/.branchctl/config.yaml) and the project config (./.branchctl/config.yaml)
// over it in that order, then applies BRANCHCTL_* environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".branchctl", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".branchctl", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path, applying the
// same default/override layering as Load.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies BRANCHCTL_* environment variables over cfg.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_MAX_BRANCHES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxBranches = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_ENGINE_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.EngineConcurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_DEFAULT_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.DefaultTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_STORAGE_DSN")); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_SESSION_ROOT")); v != "" {
		cfg.Session.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_SESSION_BACKEND")); v != "" {
		cfg.Session.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_MERGE_STRATEGY")); v != "" {
		cfg.Merge.DefaultStrategy = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_LOG_DIR")); v != "" {
		cfg.Log.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v, ok := envBool("BRANCHCTL_METRICS_ENABLED"); ok {
		cfg.Metrics.Enabled = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_METRICS_NAMESPACE")); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v, ok := envBool("BRANCHCTL_TRACING_ENABLED"); ok {
		cfg.Tracing.Enabled = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANCHCTL_TRACING_SERVICE_NAME")); v != "" {
		cfg.Tracing.ServiceName = v
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate checks the configuration against the bounds spec §4.4/§4.5 impose.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxBranches < 1 {
		return fmt.Errorf("orchestrator.max_branches must be >= 1, got %d", c.Orchestrator.MaxBranches)
	}
	if c.Orchestrator.EngineConcurrency < 1 || c.Orchestrator.EngineConcurrency > 8 {
		return fmt.Errorf("orchestrator.engine_concurrency must be in 1..=8, got %d", c.Orchestrator.EngineConcurrency)
	}
	if c.Orchestrator.DefaultTimeout <= 0 {
		return fmt.Errorf("orchestrator.default_timeout must be > 0, got %s", c.Orchestrator.DefaultTimeout)
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("storage.dsn must not be empty")
	}
	if strings.TrimSpace(c.Session.Root) == "" {
		return fmt.Errorf("session.root must not be empty")
	}
	validBackends := map[string]bool{"native": true}
	if !validBackends[c.Session.Backend] {
		return fmt.Errorf("invalid session backend: %s (must be native)", c.Session.Backend)
	}
	if strings.TrimSpace(c.Merge.DefaultStrategy) == "" {
		return fmt.Errorf("merge.default_strategy must not be empty")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	return nil
}
