// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "CANOPY_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration shared by canopyd and canopy.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Daemon configures canopyd.
	Daemon DaemonConfig `yaml:"daemon"`

	// Context configures simulated contexts run by canopy attach.
	Context ContextConfig `yaml:"context"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Daemon *DaemonConfig `yaml:"daemon,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for canopy data.
	Root string `yaml:"root"`

	// Socket is the daemon's Unix socket.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/canopy.sock
	Socket string `yaml:"socket"`

	// StateFile is where the daemon persists the configuration record.
	// Default: ${CANOPY_ROOT}/state.cbor
	StateFile string `yaml:"state_file"`
}

// DaemonConfig configures canopyd.
type DaemonConfig struct {
	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// HeartbeatInterval is how often stream connections get a
	// heartbeat frame. Default: 15s
	HeartbeatInterval string `yaml:"heartbeat_interval"`
}

// ContextConfig configures a context runtime.
type ContextConfig struct {
	// Debounce is how long a context must stay hidden before its
	// subscription is released. Default: 1500ms
	Debounce string `yaml:"debounce"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:      filepath.Join(homeDir, ".local", "state", "canopy"),
			Socket:    "${XDG_RUNTIME_DIR:-/tmp}/canopy.sock",
			StateFile: "${CANOPY_ROOT}/state.cbor",
		},
		Daemon: DaemonConfig{
			HeartbeatInterval: "15s",
		},
		Context: ContextConfig{
			Debounce: "1500ms",
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// Load loads configuration from the file named by CANOPY_CONFIG. With
// the variable unset it returns the expanded defaults.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{Log: &LogConfig{Level: "info"}}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
		if overrides.Paths.StateFile != "" {
			c.Paths.StateFile = overrides.Paths.StateFile
		}
	}

	if overrides.Daemon != nil {
		if overrides.Daemon.MetricsAddr != "" {
			c.Daemon.MetricsAddr = overrides.Daemon.MetricsAddr
		}
		if overrides.Daemon.HeartbeatInterval != "" {
			c.Daemon.HeartbeatInterval = overrides.Daemon.HeartbeatInterval
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CANOPY_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CANOPY_ROOT"] = c.Paths.Root

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.StateFile = expandVars(c.Paths.StateFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if c.Paths.StateFile == "" {
		errs = append(errs, errors.New("paths.state_file is required"))
	}
	if _, err := positiveDuration(c.Daemon.HeartbeatInterval); err != nil {
		errs = append(errs, fmt.Errorf("daemon.heartbeat_interval: %w", err))
	}
	if _, err := positiveDuration(c.Context.Debounce); err != nil {
		errs = append(errs, fmt.Errorf("context.debounce: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// HeartbeatInterval returns the parsed daemon heartbeat interval.
func (c *Config) HeartbeatInterval() time.Duration {
	interval, _ := positiveDuration(c.Daemon.HeartbeatInterval)
	return interval
}

// Debounce returns the parsed context debounce.
func (c *Config) Debounce() time.Duration {
	debounce, _ := positiveDuration(c.Context.Debounce)
	return debounce
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the directories the socket and state file live
// in.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, filepath.Dir(c.Paths.Socket), filepath.Dir(c.Paths.StateFile)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func positiveDuration(value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return duration, nil
}
