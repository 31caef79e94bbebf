package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.LeaseTimeout != 10*time.Minute {
		t.Errorf("LeaseTimeout = %v, want 10m", cfg.LeaseTimeout)
	}
	if cfg.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want 3", cfg.MaxFailures)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	contents := "addr: \":9090\"\nlease_timeout: 5m\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultServerConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":9090")
	}
	if cfg.LeaseTimeout != 5*time.Minute {
		t.Errorf("LeaseTimeout = %v, want 5m", cfg.LeaseTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want default 3", cfg.MaxFailures)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("addr: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultServerConfig()
	if err := cfg.LoadFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
