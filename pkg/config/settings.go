package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shellforge/shellforge/pkg/snapshot"
	"github.com/shellforge/shellforge/pkg/telemetry"
)

// DefaultPath is the settings file location under the user config dir.
const DefaultPath = "shellforge/config.yaml"

// Duration wraps time.Duration so YAML accepts values like "3s".
type Duration time.Duration

// UnmarshalYAML parses a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(ns)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Settings is the tool configuration.
type Settings struct {
	// Snapshot configures snapshot index fetching.
	Snapshot SnapshotSettings `yaml:"snapshot"`

	// Cache configures the local snapshot cache.
	Cache CacheSettings `yaml:"cache"`

	// Resolver configures descriptor resolution.
	Resolver ResolverSettings `yaml:"resolver"`

	// PolicyPaths lists extra policy files or directories to load.
	PolicyPaths []string `yaml:"policyPaths"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry TelemetrySettings `yaml:"telemetry"`
}

// SnapshotSettings configures the HTTP snapshot evaluator.
type SnapshotSettings struct {
	// Endpoints maps host shorthands to snapshot index base URLs.
	Endpoints map[string]string `yaml:"endpoints" validate:"omitempty,dive,url"`

	// Timeout bounds a single index fetch.
	Timeout Duration `yaml:"timeout" validate:"min=0"`

	// MaxAttempts bounds fetch retries per index.
	MaxAttempts int `yaml:"maxAttempts" validate:"min=0,max=10"`
}

// CacheSettings configures the SQLite snapshot cache.
type CacheSettings struct {
	// Enabled controls whether fetched snapshots are cached.
	Enabled bool `yaml:"enabled"`

	// Path is the cache database file. Empty means the default under the
	// user cache dir.
	Path string `yaml:"path"`
}

// ResolverSettings configures descriptor resolution.
type ResolverSettings struct {
	// MaxParallel bounds concurrent platform resolutions. Zero means the
	// resolver default.
	MaxParallel int `yaml:"maxParallel" validate:"min=0,max=64"`
}

// TelemetrySettings mirrors telemetry.Config with YAML tags.
type TelemetrySettings struct {
	Logging struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
		Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"tracing"`

	Metrics struct {
		Enabled    bool   `yaml:"enabled"`
		ListenAddr string `yaml:"listenAddr"`
	} `yaml:"metrics"`
}

// Default returns settings with all defaults applied.
func Default() *Settings {
	snap := snapshot.DefaultConfig()

	s := &Settings{
		Snapshot: SnapshotSettings{
			Endpoints:   snap.Endpoints,
			Timeout:     Duration(snap.Timeout),
			MaxAttempts: snap.MaxAttempts,
		},
		Cache: CacheSettings{
			Enabled: true,
		},
		Resolver: ResolverSettings{},
	}

	tel := telemetry.DefaultConfig()
	s.Telemetry.Logging.Level = tel.Logging.Level
	s.Telemetry.Logging.Format = tel.Logging.Format
	s.Telemetry.Tracing.Exporter = tel.Tracing.Exporter
	s.Telemetry.Metrics.ListenAddr = tel.Metrics.ListenAddr

	return s
}

// Load reads settings from path, falling back to defaults when the file
// does not exist. An empty path means the default location.
func Load(path string) (*Settings, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(dir, DefaultPath)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	return s, nil
}

// Validate checks the settings for invalid values.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return err
	}
	return nil
}

// SnapshotConfig converts the settings into a snapshot evaluator config.
func (s *Settings) SnapshotConfig() snapshot.Config {
	cfg := snapshot.DefaultConfig()
	if len(s.Snapshot.Endpoints) > 0 {
		cfg.Endpoints = s.Snapshot.Endpoints
	}
	if s.Snapshot.Timeout > 0 {
		cfg.Timeout = time.Duration(s.Snapshot.Timeout)
	}
	if s.Snapshot.MaxAttempts > 0 {
		cfg.MaxAttempts = s.Snapshot.MaxAttempts
	}
	return cfg
}

// TelemetryConfig converts the settings into a telemetry config.
func (s *Settings) TelemetryConfig(serviceVersion string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = serviceVersion

	if s.Telemetry.Logging.Level != "" {
		cfg.Logging.Level = s.Telemetry.Logging.Level
	}
	if s.Telemetry.Logging.Format != "" {
		cfg.Logging.Format = s.Telemetry.Logging.Format
	}

	cfg.Tracing.Enabled = s.Telemetry.Tracing.Enabled
	if s.Telemetry.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = s.Telemetry.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = s.Telemetry.Tracing.Endpoint

	cfg.Metrics.Enabled = s.Telemetry.Metrics.Enabled
	if s.Telemetry.Metrics.ListenAddr != "" {
		cfg.Metrics.ListenAddr = s.Telemetry.Metrics.ListenAddr
	}

	return cfg
}

// CachePath returns the cache database path, creating the parent
// directory when needed.
func (s *Settings) CachePath() (string, error) {
	if s.Cache.Path != "" {
		return s.Cache.Path, nil
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine cache dir: %w", err)
	}

	cacheDir := filepath.Join(dir, "shellforge")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	return filepath.Join(cacheDir, "snapshots.db"), nil
}
