package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldsync/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.toml")

	cfg, path, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config reported")
	}
	if path != missing {
		t.Fatalf("expected resolved path %s, got %s", missing, path)
	}
	if cfg.Sync.RetryCeiling != 5 {
		t.Fatalf("expected default retry ceiling 5, got %d", cfg.Sync.RetryCeiling)
	}
	if cfg.Sync.DraftFlushMillis != 750 {
		t.Fatalf("expected default draft flush 750ms, got %d", cfg.Sync.DraftFlushMillis)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected expanded data dir, got %s", cfg.Paths.DataDir)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Backend.DeviceProfile != "default" {
		t.Fatalf("unexpected device profile %q", cfg.Backend.DeviceProfile)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format %q", cfg.Logging.Format)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[backend]",
		`base_url = "https://city.example.org/api"`,
		"[sync]",
		"retry_ceiling = 2",
	}, "\n")
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "https://city.example.org/api" {
		t.Fatalf("unexpected base url %q", cfg.Backend.BaseURL)
	}
	if cfg.Sync.RetryCeiling != 2 {
		t.Fatalf("expected overridden ceiling 2, got %d", cfg.Sync.RetryCeiling)
	}
	// Untouched sections keep their defaults.
	if cfg.Sync.PollInterval != 30 {
		t.Fatalf("expected default poll interval, got %d", cfg.Sync.PollInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty data dir", func(c *config.Config) { c.Paths.DataDir = "" }},
		{"invalid base url", func(c *config.Config) { c.Backend.BaseURL = "not a url" }},
		{"zero retry ceiling", func(c *config.Config) { c.Sync.RetryCeiling = 0 }},
		{"negative poll interval", func(c *config.Config) { c.Sync.PollInterval = -1 }},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAuthTokenEnvFallback(t *testing.T) {
	t.Setenv("FIELDSYNC_AUTH_TOKEN", "env-token")

	missing := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.AuthToken != "env-token" {
		t.Fatalf("expected env token fallback, got %q", cfg.Backend.AuthToken)
	}
}
