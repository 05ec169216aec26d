package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Datasets.Cases) == 0 || len(cfg.Datasets.Complaints) == 0 {
		t.Error("expected dataset sources to be populated")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("expected 30s write timeout, got %s", cfg.Server.WriteTimeout)
	}
	if !reflect.DeepEqual(cfg.Questions.DefaultGroupBy, []string{"portfolio"}) {
		t.Errorf("unexpected default group_by %v", cfg.Questions.DefaultGroupBy)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
server:
  port: 9000
  read_timeout: 2s
logging:
  level: debug
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("expected 2s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("expected default write timeout, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Logging.Level)
	}
	if len(cfg.Datasets.Cases) != 0 {
		t.Errorf("expected no case sources, got %v", cfg.Datasets.Cases)
	}
}

func TestParseRejectsBadPort(t *testing.T) {
	if _, err := parse([]byte("server:\n  port: 70000\n")); err == nil {
		t.Error("expected error for out-of-range port")
	}
	if _, err := parse([]byte("server: [")); err == nil {
		t.Error("expected error for malformed yaml")
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
	if got := cfg.Sources()["complaints"]; len(got) == 0 {
		t.Error("expected complaint sources to be populated from file")
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	os.WriteFile(path, []byte("{}"), 0o644)
	got, err := ResolveConfigPath(path)
	if err != nil || got != path {
		t.Errorf("expected %q, got %q (%v)", path, got, err)
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
	if cfg.DBPath() != filepath.Join("/custom/path", "haloqa.db") {
		t.Errorf("unexpected db path %q", cfg.DBPath())
	}
}
