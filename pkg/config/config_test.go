package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Planner.BaseURL != "http://localhost:8700" {
		t.Errorf("expected default planner url, got %s", cfg.Planner.BaseURL)
	}
	if cfg.Planner.TimeoutSeconds != 30 {
		t.Errorf("expected default planner timeout 30, got %d", cfg.Planner.TimeoutSeconds)
	}
	if cfg.Engine.HeartbeatSeconds != 5 {
		t.Errorf("expected default heartbeat 5, got %d", cfg.Engine.HeartbeatSeconds)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected default exporter stdout, got %s", cfg.Telemetry.Exporter)
	}
}

func TestLoadEnv(t *testing.T) {
	os.Setenv("TELOS_LOG_LEVEL", "debug")
	defer os.Unsetenv("TELOS_LOG_LEVEL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug from env, got %s", cfg.Log.Level)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()

	content := `
planner:
  base_url: "https://planner.internal:9443"
  api_key: "secret"
  timeout_seconds: 10
engine:
  heartbeat_seconds: 2
  exec_timeout_seconds: 60
  snapshot_path: "/var/lib/telos/agent.json"
  audit_db: "/var/lib/telos/audit.db"
log:
  level: "warn"
`
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Planner.BaseURL != "https://planner.internal:9443" {
		t.Errorf("expected file planner url, got %s", cfg.Planner.BaseURL)
	}
	if cfg.Planner.APIKey != "secret" {
		t.Errorf("expected api key from file, got %q", cfg.Planner.APIKey)
	}
	if cfg.Engine.ExecTimeoutSeconds != 60 {
		t.Errorf("expected exec timeout 60, got %d", cfg.Engine.ExecTimeoutSeconds)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Log.Level)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{
		Planner: PlannerConfig{TimeoutSeconds: 10},
		Engine:  EngineConfig{HeartbeatSeconds: 2, ExecTimeoutSeconds: 60},
	}
	if cfg.Planner.Timeout().Seconds() != 10 {
		t.Errorf("unexpected planner timeout %v", cfg.Planner.Timeout())
	}
	if cfg.Engine.Heartbeat().Seconds() != 2 {
		t.Errorf("unexpected heartbeat %v", cfg.Engine.Heartbeat())
	}
	if cfg.Engine.ExecTimeout().Seconds() != 60 {
		t.Errorf("unexpected exec timeout %v", cfg.Engine.ExecTimeout())
	}
}
