// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Server.PollTimeout != "25s" {
		t.Errorf("expected poll_timeout=25s, got %s", cfg.Server.PollTimeout)
	}
	if cfg.Session.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Session.Compression)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CHATSYNC_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "CHATSYNC_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	path := writeConfig(t, "chatsync.yaml", `
environment: staging
server:
  url: https://chat.example.com
  user: "7"
sync:
  page_size: 100
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Server.URL != "https://chat.example.com" || cfg.Server.User != "7" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Sync.PageSize != 100 {
		t.Errorf("expected page_size=100, got %d", cfg.Sync.PageSize)
	}
	// Defaults survive a partial file.
	if cfg.Server.RequestTimeout != "15s" {
		t.Errorf("expected default request_timeout, got %s", cfg.Server.RequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "chatsync.jsonc", `{
		// Local server.
		"server": {
			"url": "http://localhost:5000",
			"user": "7",
			"poll_timeout": "10s", /* shorter for development */
		},
		"session": {"compression": "lz4"},
	}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Server.URL != "http://localhost:5000" {
		t.Errorf("expected url from JSONC, got %s", cfg.Server.URL)
	}
	if cfg.PollTimeoutDuration() != 10*time.Second {
		t.Errorf("expected poll timeout 10s, got %v", cfg.PollTimeoutDuration())
	}
	if cfg.Session.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.Session.Compression)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := writeConfig(t, "chatsync.yaml", `
server:
  url: https://chat.example.com
  usr: "7"
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Run("explicit section", func(t *testing.T) {
		path := writeConfig(t, "chatsync.yaml", `
environment: development
server:
  url: https://chat.example.com
  user: "7"
development:
  server:
    url: http://localhost:5000
  logging:
    format: json
production:
  server:
    url: https://ignored.example.com
`)
		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() failed: %v", err)
		}
		if cfg.Server.URL != "http://localhost:5000" {
			t.Errorf("expected development url override, got %s", cfg.Server.URL)
		}
		if cfg.Server.User != "7" {
			t.Errorf("base user should survive the override, got %s", cfg.Server.User)
		}
		if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
			t.Errorf("unexpected logging config: %+v", cfg.Logging)
		}
	})

	t.Run("production defaults", func(t *testing.T) {
		path := writeConfig(t, "chatsync.yaml", `
environment: production
server:
  url: https://chat.example.com
  user: "7"
`)
		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() failed: %v", err)
		}
		if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
			t.Errorf("expected production logging defaults, got %+v", cfg.Logging)
		}
	})
}

func TestExpandVariables(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)
	t.Setenv("CHATSYNC_TEST_HOST", "chat.internal")
	t.Setenv("CHATSYNC_TEST_UNSET", "")

	path := writeConfig(t, "chatsync.yaml", `
server:
  url: https://${CHATSYNC_TEST_HOST}
  user: ${CHATSYNC_TEST_UNSET:-42}
  token_file: ${HOME}/.chatsync-token
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Server.URL != "https://chat.internal" {
		t.Errorf("expected expanded url, got %s", cfg.Server.URL)
	}
	if cfg.Server.User != "42" {
		t.Errorf("expected default user 42, got %s", cfg.Server.User)
	}
	if cfg.Server.TokenFile != os.Getenv("HOME")+"/.chatsync-token" {
		t.Errorf("expected token file under HOME, got %s", cfg.Server.TokenFile)
	}
	want := filepath.Join(stateHome, "chatsync", "session.snap")
	if cfg.Session.SnapshotPath != want {
		t.Errorf("expected snapshot path %s, got %s", want, cfg.Session.SnapshotPath)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Server.URL = "https://chat.example.com"
		cfg.Server.User = "7"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config failed validation: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"missing url", func(c *Config) { c.Server.URL = "" }, "server.url is required"},
		{"url scheme", func(c *Config) { c.Server.URL = "ws://chat" }, "server.url must be http or https"},
		{"missing user", func(c *Config) { c.Server.User = "" }, "server.user is required"},
		{"poll timeout", func(c *Config) { c.Server.PollTimeout = "soon" }, "server.poll_timeout"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = "-1s" }, "server.request_timeout must be positive"},
		{"compression", func(c *Config) { c.Session.Compression = "gzip" }, "session.compression"},
		{"recipients without path", func(c *Config) {
			c.Session.SnapshotPath = ""
			c.Session.Recipients = []string{"age1xyz"}
		}, "session.recipients requires"},
		{"page size", func(c *Config) { c.Sync.PageSize = -1 }, "sync.page_size"},
		{"locale", func(c *Config) { c.Sync.Locale = "not a locale" }, "sync.locale"},
		{"level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics listen", func(c *Config) { c.Metrics.Listen = "9464" }, "metrics.listen"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.message) {
				t.Errorf("error %q does not mention %q", err.Error(), test.message)
			}
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := valid()
		cfg.Server.URL = ""
		cfg.Logging.Level = "trace"
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "server.url") || !strings.Contains(err.Error(), "logging.level") {
			t.Fatalf("expected both problems reported, got %v", err)
		}
	})
}

func TestEnsurePaths(t *testing.T) {
	cfg := Default()
	cfg.Session.SnapshotPath = filepath.Join(t.TempDir(), "nested", "state", "session.snap")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	info, err := os.Stat(filepath.Dir(cfg.Session.SnapshotPath))
	if err != nil || !info.IsDir() {
		t.Fatalf("snapshot directory not created: %v", err)
	}
}
