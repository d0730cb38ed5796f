package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
backend:
  type: clickhouse
models:
  service_url: http://localhost:9500
kafka:
  brokers:
    - localhost:9092
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Predictor.MinConfidence != 0.6 {
		t.Fatalf("expected default min confidence 0.6, got %v", cfg.Predictor.MinConfidence)
	}
	if cfg.Predictor.WindowBars != 250 {
		t.Fatalf("expected default window 250, got %d", cfg.Predictor.WindowBars)
	}
	if cfg.Predictor.State.Type != "file" {
		t.Fatalf("expected file state store default, got %s", cfg.Predictor.State.Type)
	}
	if len(cfg.Models.Enabled) != 2 {
		t.Fatalf("expected both models enabled by default, got %v", cfg.Models.Enabled)
	}
	if cfg.Kafka.Consumer.Workers != 4 {
		t.Fatalf("expected default consumer workers 4, got %d", cfg.Kafka.Consumer.Workers)
	}
	if cfg.Predictor.MaxStaleness != 30*24*time.Hour {
		t.Fatalf("expected default staleness 30d, got %v", cfg.Predictor.MaxStaleness)
	}
}

func TestLoadMissingEnvironment(t *testing.T) {
	if _, err := Load(writeConfig(t, "backend:\n  type: kafka\n")); err == nil {
		t.Fatalf("expected validation error for missing environment")
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	y := `
environment: test
backend:
  type: postgres
models:
  service_url: http://localhost:9500
`
	if _, err := Load(writeConfig(t, y)); err == nil {
		t.Fatalf("expected validation error for unknown backend")
	}
}

func TestLoadRedisStateRequiresRedis(t *testing.T) {
	y := `
environment: test
backend:
  type: clickhouse
models:
  service_url: http://localhost:9500
predictor:
  state:
    type: redis
`
	if _, err := Load(writeConfig(t, y)); err == nil {
		t.Fatalf("expected validation error for redis state without redis enabled")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MIN_CONFIDENCE", "0.75")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.Type != "kafka" {
		t.Fatalf("expected backend override, got %s", cfg.Backend.Type)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port override 9090, got %d", cfg.Server.Port)
	}
	if cfg.Predictor.MinConfidence != 0.75 {
		t.Fatalf("expected min confidence override, got %v", cfg.Predictor.MinConfidence)
	}
}
