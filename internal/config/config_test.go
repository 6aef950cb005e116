package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/natefinch/lumberjack.v2"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "savewatch.toml", `
watch_dir = "/saves"
extensions = [".sav", ".eu4"]
debounce_window = "750ms"
idle_delay = "5s"
max_depth = 32
min_version = "3.0.0"
stale_changes = 2

[log]
file = "/var/log/savewatch.log"
max_size_mb = 25
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := DefaultConfig()
	want.WatchDir = "/saves"
	want.Extensions = []string{".sav", ".eu4"}
	want.DebounceWindow = 750 * time.Millisecond
	want.IdleDelay = 5 * time.Second
	want.MaxDepth = 32
	want.MinVersion = "3.0.0"
	want.StaleChanges = 2
	want.Log.File = "/var/log/savewatch.log"
	want.Log.MaxSizeMB = 25

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "savewatch.yaml", `
watch_dir: /saves
kill_grace: 3s
log:
  max_backups: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WatchDir != "/saves" {
		t.Errorf("WatchDir = %q", cfg.WatchDir)
	}
	if cfg.KillGrace != 3*time.Second {
		t.Errorf("KillGrace = %s", cfg.KillGrace)
	}
	if cfg.Log.MaxBackups != 7 {
		t.Errorf("Log.MaxBackups = %d", cfg.Log.MaxBackups)
	}
	// Untouched keys keep their defaults.
	if cfg.MaxNodes != DefaultConfig().MaxNodes {
		t.Errorf("MaxNodes = %d", cfg.MaxNodes)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load succeeded for a missing explicit config")
	}
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "savewatch.toml", `
watch_dir = "/from-file"
debounce_window = "250ms"
`)
	t.Setenv("SAVEWATCH_WATCH_DIR", "/from-env")
	t.Setenv("SAVEWATCH_DEBOUNCE_WINDOW", "1s")
	t.Setenv("SAVEWATCH_LOG_FILE", "/tmp/env.log")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WatchDir != "/from-env" {
		t.Errorf("WatchDir = %q, want env override", cfg.WatchDir)
	}
	if cfg.DebounceWindow != time.Second {
		t.Errorf("DebounceWindow = %s, want env override", cfg.DebounceWindow)
	}
	if cfg.Log.File != "/tmp/env.log" {
		t.Errorf("Log.File = %q, want env override", cfg.Log.File)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "savewatch.toml", `debounce_window = "-1s"`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a negative debounce window")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative idle delay", func(c *Config) { c.IdleDelay = -time.Second }},
		{"zero kill grace", func(c *Config) { c.KillGrace = 0 }},
		{"zero max depth", func(c *Config) { c.MaxDepth = 0 }},
		{"zero max nodes", func(c *Config) { c.MaxNodes = 0 }},
		{"zero meta window", func(c *Config) { c.MetaWindow = 0 }},
		{"both thresholds zero", func(c *Config) { c.StaleChanges = 0; c.StaleCommits = 0 }},
		{"negative log size", func(c *Config) { c.Log.MaxSizeMB = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestLogWriter(t *testing.T) {
	if w := (LogConfig{}).Writer(); w != os.Stderr {
		t.Errorf("empty LogConfig writer = %T, want stderr", w)
	}

	lc := LogConfig{File: "/tmp/savewatch.log", MaxSizeMB: 5, MaxBackups: 2, MaxAgeDays: 7}
	lj, ok := lc.Writer().(*lumberjack.Logger)
	if !ok {
		t.Fatalf("file-backed writer = %T, want *lumberjack.Logger", lc.Writer())
	}
	if lj.Filename != lc.File || lj.MaxSize != 5 || lj.MaxBackups != 2 || lj.MaxAge != 7 {
		t.Errorf("rotation settings = %+v", lj)
	}
}
