package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
cache:
  ttl_hours: 24
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
	if cfg.Cache.TTLHours != 24 {
		t.Errorf("expected ttl 24, got %d", cfg.Cache.TTLHours)
	}
	if cfg.Cache.MaxEntries != 5000 {
		t.Errorf("expected default max entries 5000, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Retrieval.ConfidenceThreshold != 0.875 {
		t.Errorf("expected default confidence threshold, got %f", cfg.Retrieval.ConfidenceThreshold)
	}
	if cfg.Retrieval.MaxContextChars != 1200 {
		t.Errorf("expected default context budget, got %d", cfg.Retrieval.MaxContextChars)
	}
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  session_db_path: ./data/sessions.db
  faq_path: ./faq.json
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := filepath.Join(dir, "data/sessions.db")
	if cfg.Storage.SessionDBPath != want {
		t.Errorf("expected %q, got %q", want, cfg.Storage.SessionDBPath)
	}
	if cfg.Storage.FAQPath != filepath.Join(dir, "faq.json") {
		t.Errorf("unexpected faq path %q", cfg.Storage.FAQPath)
	}
}

func TestLoadMergesEnvKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KOTAE_CLOUD_KEY", "primary")
	t.Setenv("KOTAE_CLOUD_KEY_1", "backup-one")
	t.Setenv("KOTAE_ACCELERATOR_KEY", "accel")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Providers.Cloud.APIKeys) != 2 {
		t.Fatalf("expected 2 cloud keys, got %d", len(cfg.Providers.Cloud.APIKeys))
	}
	if cfg.Providers.Cloud.APIKeys[0] != "primary" {
		t.Errorf("primary key should come first, got %q", cfg.Providers.Cloud.APIKeys[0])
	}
	if cfg.Providers.Accelerator.APIKey != "accel" {
		t.Errorf("expected accelerator key from env, got %q", cfg.Providers.Accelerator.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
