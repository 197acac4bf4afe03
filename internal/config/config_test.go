package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// isolate points the search paths at empty temporary directories.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	work := t.TempDir()
	t.Chdir(work)
	return work
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != "" {
		t.Fatalf("expected no config file, got %q", cfg.Source)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "auto" || cfg.DiagramFormat != "svg" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Output != "-" {
		t.Fatalf("expected stdout output by default, got %q", cfg.Output)
	}
}

func TestLoadFindsWorkingDirectoryFile(t *testing.T) {
	work := isolate(t)
	path := filepath.Join(work, ".odogen.yaml")
	if err := os.WriteFile(path, []byte("prefix: odo_\nlog_level: DEBUG\nworkers: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "odo_" {
		t.Fatalf("expected prefix odo_, got %q", cfg.Prefix)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected lowercased log level, got %q", cfg.LogLevel)
	}
	if cfg.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.Workers)
	}
	if filepath.Base(cfg.Source) != ".odogen.yaml" {
		t.Fatalf("expected source .odogen.yaml, got %q", cfg.Source)
	}
}

func TestLoadFindsHomeFile(t *testing.T) {
	isolate(t)
	home := os.Getenv("HOME")
	dir := filepath.Join(home, ".config", "odogen")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("out_dir: build\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutDir != "build" {
		t.Fatalf("expected out_dir build, got %q", cfg.OutDir)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	work := isolate(t)
	path := filepath.Join(work, "custom.yaml")
	if err := os.WriteFile(path, []byte("prefix: file_\ntiming: false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ODOGEN_PREFIX", "env_")
	t.Setenv("ODOGEN_TIMING", "true")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "env_" {
		t.Fatalf("expected env prefix, got %q", cfg.Prefix)
	}
	if !cfg.Timing {
		t.Fatalf("expected timing enabled from env")
	}
}

func TestLoadRejectsUnknownEnums(t *testing.T) {
	isolate(t)
	t.Setenv("ODOGEN_LOG_LEVEL", "chatty")
	if _, err := Load(viper.New(), ""); err == nil {
		t.Fatalf("expected invalid log level to be rejected")
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	isolate(t)
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.Prefix = "rt_"
	cfg.Manifest = "out/manifest.json"
	cfg.DiagramFormat = "png"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Prefix != "rt_" || loaded.Manifest != "out/manifest.json" || loaded.DiagramFormat != "png" {
		t.Fatalf("round trip lost values: %+v", loaded)
	}
}
