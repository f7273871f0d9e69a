// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads the config path from.
const EnvVar = "CHATSYNC_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for running against a local server.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for everyday use against a deployed server.
	Production Environment = "production"
)

// Config is the chatsync client configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Server configures the chat server connection.
	Server ServerConfig `yaml:"server"`

	// Session configures the saved session snapshot.
	Session SessionConfig `yaml:"session"`

	// Sync tunes the orchestrator.
	Sync SyncConfig `yaml:"sync"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Server  *ServerConfig  `yaml:"server,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// ServerConfig configures the chat server connection.
type ServerConfig struct {
	// URL is the server's base URL, e.g. https://chat.example.com.
	URL string `yaml:"url"`

	// User is the signed-in user's ID.
	User string `yaml:"user"`

	// TokenFile holds the access token. "-" reads stdin. Empty falls
	// back to the CHATSYNC_TOKEN environment variable.
	TokenFile string `yaml:"token_file"`

	// PollTimeout is how long the server may hold a push poll open.
	// Default: 25s
	PollTimeout string `yaml:"poll_timeout"`

	// RequestTimeout bounds every other HTTP request.
	// Default: 15s
	RequestTimeout string `yaml:"request_timeout"`
}

// SessionConfig configures the session snapshot written on exit and
// restored on start.
type SessionConfig struct {
	// SnapshotPath is where the snapshot lives. Empty disables it.
	SnapshotPath string `yaml:"snapshot_path"`

	// Compression is one of "none", "lz4", "zstd".
	// Default: zstd
	Compression string `yaml:"compression"`

	// Recipients are age X25519 recipients the snapshot is sealed to.
	// Empty writes it unsealed.
	Recipients []string `yaml:"recipients"`

	// IdentityFile holds the age identities that open a sealed
	// snapshot.
	IdentityFile string `yaml:"identity_file"`
}

// SyncConfig tunes the orchestrator.
type SyncConfig struct {
	// PageSize is the pull limit. Zero leaves it to the server.
	PageSize int `yaml:"page_size"`

	// Locale orders conversation names, as a BCP 47 tag.
	// Default: en
	Locale string `yaml:"locale"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: debug (development), info (production)
	Level string `yaml:"level"`

	// Format is "text", "json", or "auto". Auto picks text when the
	// log destination is a terminal and JSON otherwise.
	// Default: auto
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address /metrics is served on, e.g. 127.0.0.1:9464.
	// Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration. The defaults fill in
// optional fields; the server URL and user always come from the file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			PollTimeout:    "25s",
			RequestTimeout: "15s",
		},
		Session: SessionConfig{
			SnapshotPath: filepath.Join("${CHATSYNC_STATE}", "session.snap"),
			Compression:  "zstd",
		},
		Sync: SyncConfig{
			Locale: "en",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by CHATSYNC_CONFIG.
// There is no fallback: if the variable is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your chatsync.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files ending
// in .json or .jsonc are read as JSON with comments and trailing
// commas; anything else as YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.parse(data, filepath.Ext(path))
}

// parse decodes data over c. Unknown keys are errors.
func (c *Config) parse(data []byte, extension string) error {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		// Compacted JSON is valid YAML, so it decodes through the same
		// struct tags. Compacting also removes tab indentation, which
		// YAML rejects.
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, jsonc.ToJSON(data)); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
		data = compacted.Bytes()
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: quieter, machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Level: "info", Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.URL != "" {
			c.Server.URL = overrides.Server.URL
		}
		if overrides.Server.User != "" {
			c.Server.User = overrides.Server.User
		}
		if overrides.Server.TokenFile != "" {
			c.Server.TokenFile = overrides.Server.TokenFile
		}
		if overrides.Server.PollTimeout != "" {
			c.Server.PollTimeout = overrides.Server.PollTimeout
		}
		if overrides.Server.RequestTimeout != "" {
			c.Server.RequestTimeout = overrides.Server.RequestTimeout
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}

	if overrides.Metrics != nil && overrides.Metrics.Listen != "" {
		c.Metrics.Listen = overrides.Metrics.Listen
	}
}

// stateDirectory is the default home of the session snapshot.
func stateDirectory() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "chatsync")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "state", "chatsync")
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// string fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CHATSYNC_STATE": stateDirectory(),
		"HOME":           os.Getenv("HOME"),
	}

	c.Server.URL = expandVars(c.Server.URL, vars)
	c.Server.User = expandVars(c.Server.User, vars)
	c.Server.TokenFile = expandVars(c.Server.TokenFile, vars)
	c.Session.SnapshotPath = expandVars(c.Session.SnapshotPath, vars)
	c.Session.IdentityFile = expandVars(c.Session.IdentityFile, vars)
	for index, recipient := range c.Session.Recipients {
		c.Session.Recipients[index] = expandVars(recipient, vars)
	}
	c.Metrics.Listen = expandVars(c.Metrics.Listen, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

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

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.URL == "" {
		errs = append(errs, fmt.Errorf("server.url is required"))
	} else if parsed, err := url.Parse(c.Server.URL); err != nil {
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("server.url must be http or https, got %q", c.Server.URL))
	}

	if c.Server.User == "" {
		errs = append(errs, fmt.Errorf("server.user is required"))
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"server.poll_timeout", c.Server.PollTimeout},
		{"server.request_timeout", c.Server.RequestTimeout},
	} {
		if duration, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		} else if duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", field.name))
		}
	}

	compressionValues := []string{"none", "lz4", "zstd"}
	if !contains(compressionValues, c.Session.Compression) {
		errs = append(errs, fmt.Errorf("session.compression must be one of: %v", compressionValues))
	}
	if len(c.Session.Recipients) > 0 && c.Session.SnapshotPath == "" {
		errs = append(errs, fmt.Errorf("session.recipients requires session.snapshot_path"))
	}

	if c.Sync.PageSize < 0 {
		errs = append(errs, fmt.Errorf("sync.page_size must not be negative"))
	}
	if _, err := language.Parse(c.Sync.Locale); err != nil {
		errs = append(errs, fmt.Errorf("sync.locale: %w", err))
	}

	levelValues := []string{"debug", "info", "warn", "error"}
	if !contains(levelValues, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levelValues))
	}
	formatValues := []string{"text", "json", "auto"}
	if !contains(formatValues, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formatValues))
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PollTimeoutDuration returns Server.PollTimeout parsed. Call Validate
// first; an unparseable value yields zero.
func (c *Config) PollTimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.Server.PollTimeout)
	return duration
}

// RequestTimeoutDuration returns Server.RequestTimeout parsed. Call
// Validate first; an unparseable value yields zero.
func (c *Config) RequestTimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.Server.RequestTimeout)
	return duration
}

// EnsurePaths creates the directory of the snapshot file.
func (c *Config) EnsurePaths() error {
	if c.Session.SnapshotPath == "" {
		return nil
	}
	directory := filepath.Dir(c.Session.SnapshotPath)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
