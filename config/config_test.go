package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/salus-sched/salus/resources"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Admission.Disabled {
		t.Fatal("Admission.Disabled = true by default, want false")
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "capacity:\n  MEMORY:GPU:0: 1000\nadmission:\n  disabled: true\ngossip:\n  enabled: true\n  announceInterval: 45s\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	if cfg.Capacity[resources.GPU0Memory] != 1000 {
		t.Fatalf("Capacity[GPU0Memory] = %d, want 1000", cfg.Capacity[resources.GPU0Memory])
	}
	if !cfg.Admission.Disabled {
		t.Fatal("Admission.Disabled = false, want true")
	}
	if !cfg.Gossip.Enabled {
		t.Fatal("Gossip.Enabled = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedCapacityKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("capacity:\n  not-a-tag: 5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a malformed capacity key")
	}
}
