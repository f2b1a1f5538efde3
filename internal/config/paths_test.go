package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfigPath_Explicit(t *testing.T) {
	t.Parallel()

	got, err := ResolveConfigPath("/etc/recall.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/etc/recall.yaml" {
		t.Errorf("got %q", got)
	}
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "recall")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, FileName)
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Setenv("HOME", "/nonexistent/home")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(""); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/recall"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	t.Setenv("XDG_DATA_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "recall"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfig_Path(t *testing.T) {
	t.Parallel()

	cfg := &Config{DataDir: "/data"}
	if got := cfg.Path("facts.json"); got != "/data/facts.json" {
		t.Errorf("relative: %q", got)
	}
	if got := cfg.Path("/abs/facts.json"); got != "/abs/facts.json" {
		t.Errorf("absolute: %q", got)
	}
	if got := cfg.Path(""); got != "" {
		t.Errorf("empty: %q", got)
	}
}
