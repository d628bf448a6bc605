package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := Default()

	if len(s.Snapshot.Endpoints) == 0 {
		t.Error("default settings have no snapshot endpoints")
	}
	if !s.Cache.Enabled {
		t.Error("cache should default to enabled")
	}
	if s.Telemetry.Logging.Level != "info" {
		t.Errorf("default log level = %q", s.Telemetry.Logging.Level)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("default settings should validate: %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Snapshot.Endpoints) == 0 {
		t.Error("expected defaults for a missing file")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	payload := `
snapshot:
  timeout: 3s
  maxAttempts: 5
cache:
  enabled: false
resolver:
  maxParallel: 2
telemetry:
  logging:
    level: debug
  metrics:
    enabled: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if time.Duration(s.Snapshot.Timeout) != 3*time.Second {
		t.Errorf("timeout = %v", s.Snapshot.Timeout)
	}
	if s.Snapshot.MaxAttempts != 5 {
		t.Errorf("maxAttempts = %d", s.Snapshot.MaxAttempts)
	}
	if s.Cache.Enabled {
		t.Error("cache should be disabled")
	}
	if s.Resolver.MaxParallel != 2 {
		t.Errorf("maxParallel = %d", s.Resolver.MaxParallel)
	}
	if s.Telemetry.Logging.Level != "debug" {
		t.Errorf("level = %q", s.Telemetry.Logging.Level)
	}
	if !s.Telemetry.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}

	// Unset sections keep their defaults.
	if len(s.Snapshot.Endpoints) == 0 {
		t.Error("endpoints should keep defaults")
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	payload := `
telemetry:
  logging:
    level: loud
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("snapshot: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSnapshotConfigConversion(t *testing.T) {
	s := Default()
	s.Snapshot.Timeout = Duration(7 * time.Second)
	s.Snapshot.Endpoints = map[string]string{"github": "https://example.test/snapshots"}

	cfg := s.SnapshotConfig()
	if cfg.Timeout != 7*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
	if cfg.Endpoints["github"] != "https://example.test/snapshots" {
		t.Errorf("endpoints = %v", cfg.Endpoints)
	}
	if cfg.MaxAttempts == 0 {
		t.Error("maxAttempts should fall back to the evaluator default")
	}
}

func TestTelemetryConfigConversion(t *testing.T) {
	s := Default()
	s.Telemetry.Tracing.Enabled = true
	s.Telemetry.Tracing.Exporter = "stdout"

	cfg := s.TelemetryConfig("1.2.3")
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("version = %q", cfg.ServiceVersion)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "stdout" {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}
