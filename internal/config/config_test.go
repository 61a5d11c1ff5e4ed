package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Search.Limit != 10 {
		t.Errorf("expected search limit 10, got %d", cfg.Search.Limit)
	}
	if cfg.Search.MaxCommunities != 100 {
		t.Errorf("expected 100 max communities, got %d", cfg.Search.MaxCommunities)
	}
	if cfg.Baseline.Policy != BaselineRefetch {
		t.Errorf("expected policy 'refetch', got %q", cfg.Baseline.Policy)
	}
	if cfg.Baseline.TTL != 6*time.Hour {
		t.Errorf("expected ttl 6h, got %v", cfg.Baseline.TTL)
	}
	if cfg.DebugLimit != 15 {
		t.Errorf("expected debug limit 15, got %d", cfg.DebugLimit)
	}
	if cfg.Reddit.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Reddit.Timeout)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
input: targets.csv
baseline:
  policy: persistent
enrich:
  concurrency: 0
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Input != "targets.csv" {
		t.Errorf("expected input 'targets.csv', got %q", cfg.Input)
	}
	if cfg.Baseline.Policy != BaselinePersistent {
		t.Errorf("expected policy 'persistent', got %q", cfg.Baseline.Policy)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Baseline.SampleSize != 100 {
		t.Errorf("expected default sample size 100, got %d", cfg.Baseline.SampleSize)
	}
	if cfg.Reddit.ClientIDEnv != "REDDIT_CLIENT_ID" {
		t.Errorf("expected default client id env, got %q", cfg.Reddit.ClientIDEnv)
	}
	if cfg.Enrich.Concurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", cfg.Enrich.Concurrency)
	}
}

func TestParseRejectsUnknownPolicy(t *testing.T) {
	if _, err := parse([]byte("baseline:\n  policy: sometimes\n")); err == nil {
		t.Error("expected error for unknown baseline policy")
	}
	if _, err := parse([]byte("search:\n  backend: carrier-pigeon\n")); err == nil {
		t.Error("expected error for unknown search backend")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Search.Backend != SearchAPI {
		t.Errorf("expected backend 'api', got %q", cfg.Search.Backend)
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("TS_TEST_ID", "abc")
	t.Setenv("TS_TEST_SECRET", "xyz")

	cfg := &Config{Reddit: Reddit{ClientIDEnv: "TS_TEST_ID", ClientSecretEnv: "TS_TEST_SECRET"}}
	id, secret := cfg.Credentials()
	if id != "abc" || secret != "xyz" {
		t.Errorf("expected abc/xyz, got %q/%q", id, secret)
	}
}
