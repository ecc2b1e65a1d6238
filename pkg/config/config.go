// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads engine configuration from YAML files and
// TELOS_-prefixed environment variables, env taking precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Planner   PlannerConfig   `koanf:"planner"`
	Engine    EngineConfig    `koanf:"engine"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// PlannerConfig locates the remote planner service.
type PlannerConfig struct {
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// EngineConfig tunes the agent loop and local persistence.
type EngineConfig struct {
	HeartbeatSeconds   int    `koanf:"heartbeat_seconds"`
	ExecTimeoutSeconds int    `koanf:"exec_timeout_seconds"`
	SnapshotPath       string `koanf:"snapshot_path"`
	AuditDB            string `koanf:"audit_db"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// MCPConfig lists MCP servers whose tools become worker functions.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `koanf:"servers"`
}

type MCPServerConfig struct {
	Transport string   `koanf:"transport"` // stdio, http
	URL       string   `koanf:"url"`
	Command   string   `koanf:"command"`
	Args      []string `koanf:"args"`
}

// Timeout returns the planner timeout as a duration.
func (c PlannerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Heartbeat returns the loop heartbeat as a duration.
func (c EngineConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// ExecTimeout returns the per-function execution timeout as a duration.
func (c EngineConfig) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("planner.base_url", "http://localhost:8700")
	k.Set("planner.timeout_seconds", 30)

	k.Set("engine.heartbeat_seconds", 5)
	k.Set("engine.exec_timeout_seconds", 0)
	k.Set("engine.snapshot_path", "")
	k.Set("engine.audit_db", "")

	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (TELOS_PLANNER_BASE_URL -> planner.base_url)
	if err := k.Load(env.Provider("TELOS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "TELOS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
