// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canopy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Daemon.HeartbeatInterval != "15s" {
		t.Errorf("expected heartbeat_interval=15s, got %s", cfg.Daemon.HeartbeatInterval)
	}
	if cfg.Debounce() != 1500*time.Millisecond {
		t.Errorf("expected debounce=1.5s, got %s", cfg.Debounce())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadWithoutConfigUsesDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.Socket != "/run/user/1000/canopy.sock" {
		t.Errorf("expected expanded socket path, got %s", cfg.Paths.Socket)
	}
	if cfg.Paths.StateFile != filepath.Join(cfg.Paths.Root, "state.cbor") {
		t.Errorf("expected state file under root, got %s", cfg.Paths.StateFile)
	}
}

func TestLoadWithCanopyConfig(t *testing.T) {
	path := writeConfig(t, `
environment: staging
paths:
  root: /test/root
  socket: /test/canopy.sock
daemon:
  metrics_addr: 127.0.0.1:9464
  heartbeat_interval: 5s
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Paths.Socket != "/test/canopy.sock" {
		t.Errorf("expected socket=/test/canopy.sock, got %s", cfg.Paths.Socket)
	}
	if cfg.Paths.StateFile != "/test/root/state.cbor" {
		t.Errorf("expected state_file=/test/root/state.cbor, got %s", cfg.Paths.StateFile)
	}
	if cfg.Daemon.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("expected metrics_addr from file, got %s", cfg.Daemon.MetricsAddr)
	}
	if cfg.HeartbeatInterval() != 5*time.Second {
		t.Errorf("expected heartbeat 5s, got %s", cfg.HeartbeatInterval())
	}
	if cfg.Debounce() != 1500*time.Millisecond {
		t.Errorf("expected default debounce, got %s", cfg.Debounce())
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeConfig(t, "paths: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: development
daemon:
  metrics_addr: 127.0.0.1:9464
development:
  daemon:
    metrics_addr: 127.0.0.1:19464
  log:
    level: warn
production:
  daemon:
    metrics_addr: 0.0.0.0:9464
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Daemon.MetricsAddr != "127.0.0.1:19464" {
		t.Errorf("expected development override, got %s", cfg.Daemon.MetricsAddr)
	}
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Errorf("expected warn level, got %v (err %v)", level, err)
	}
}

func TestProductionDefaultsToInfo(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelInfo {
		t.Errorf("expected info level in production, got %v (err %v)", level, err)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("CANOPY_SOCKET", "/env/canopy.sock")

	cfg, err := LoadFile(writeConfig(t, "paths:\n  socket: /file/canopy.sock\n"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Paths.Socket != "/file/canopy.sock" {
		t.Errorf("expected socket from file, got %s (env vars should not override)", cfg.Paths.Socket)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/canopy",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/canopy",
		},
		{
			input:    "${CANOPY_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "invalid" },
			wantErr: true,
		},
		{
			name:    "empty socket path",
			modify:  func(c *Config) { c.Paths.Socket = "" },
			wantErr: true,
		},
		{
			name:    "empty state file",
			modify:  func(c *Config) { c.Paths.StateFile = "" },
			wantErr: true,
		},
		{
			name:    "unparseable heartbeat",
			modify:  func(c *Config) { c.Daemon.HeartbeatInterval = "often" },
			wantErr: true,
		},
		{
			name:    "zero debounce",
			modify:  func(c *Config) { c.Context.Debounce = "0s" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "canopy")
	cfg.Paths.Socket = filepath.Join(tmpDir, "run", "canopy.sock")
	cfg.Paths.StateFile = filepath.Join(cfg.Paths.Root, "data", "state.cbor")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, filepath.Join(tmpDir, "run"), filepath.Join(cfg.Paths.Root, "data")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
