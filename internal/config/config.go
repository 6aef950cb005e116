// Package config loads savewatch configuration from files, environment
// variables, and defaults.
//
// Configuration is searched as savewatch.toml or savewatch.yaml in the
// current directory and $HOME/.config/savewatch, every key can be
// overridden through SAVEWATCH_* environment variables, and an explicit
// --config path wins over both.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the full savewatch configuration.
type Config struct {
	// WatchDir is the saves directory to watch.
	WatchDir string `mapstructure:"watch_dir"`

	// Extensions are the file extensions treated as saves. Empty matches
	// every file.
	Extensions []string `mapstructure:"extensions"`

	// DebounceWindow is how long a save's size and mtime must hold still
	// before it is ingested.
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// IdleDelay is the quiet period before the full tier runs on its own.
	IdleDelay time.Duration `mapstructure:"idle_delay"`

	// KillGrace is how long a cancelled worker gets before a hard kill.
	KillGrace time.Duration `mapstructure:"kill_grace"`

	// MaxDepth and MaxNodes bound the block parser.
	MaxDepth int `mapstructure:"max_depth"`
	MaxNodes int `mapstructure:"max_nodes"`

	// MetaWindow is how many bytes of the head of a plain save are read
	// for metadata extraction.
	MetaWindow int64 `mapstructure:"meta_window"`

	// Profile is an optional status extraction profile path.
	Profile string `mapstructure:"profile"`

	// MinVersion gates save-version support, e.g. "3.0.0". Empty accepts
	// everything.
	MinVersion string `mapstructure:"min_version"`

	// StaleChanges and StaleCommits are the staleness thresholds for the
	// full tier: file changes observed and cheap-tier commits landed since
	// its last commit.
	StaleChanges uint64 `mapstructure:"stale_changes"`
	StaleCommits uint64 `mapstructure:"stale_commits"`

	// Log configures the log destination and rotation.
	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extensions:     []string{".sav"},
		DebounceWindow: 500 * time.Millisecond,
		IdleDelay:      2 * time.Second,
		KillGrace:      2 * time.Second,
		MaxDepth:       64,
		MaxNodes:       5_000_000,
		MetaWindow:     128 * 1024,
		StaleChanges:   3,
		StaleCommits:   6,
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DebounceWindow <= 0 {
		return fmt.Errorf("debounce_window must be positive, got %s", c.DebounceWindow)
	}
	if c.IdleDelay <= 0 {
		return fmt.Errorf("idle_delay must be positive, got %s", c.IdleDelay)
	}
	if c.KillGrace <= 0 {
		return fmt.Errorf("kill_grace must be positive, got %s", c.KillGrace)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxNodes <= 0 {
		return fmt.Errorf("max_nodes must be positive, got %d", c.MaxNodes)
	}
	if c.MetaWindow <= 0 {
		return fmt.Errorf("meta_window must be positive, got %d", c.MetaWindow)
	}
	if c.StaleChanges == 0 && c.StaleCommits == 0 {
		return fmt.Errorf("stale_changes and stale_commits cannot both be zero")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits cannot be negative")
	}
	return nil
}

// Writer returns the configured log destination: a rotating file when File
// is set, stderr otherwise.
func (lc LogConfig) Writer() io.Writer {
	if lc.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
	}
}

// Load reads configuration. explicitPath, when non-empty, names the config
// file and must exist; otherwise the standard locations are searched and a
// missing file just means defaults.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("watch_dir", defaults.WatchDir)
	v.SetDefault("extensions", defaults.Extensions)
	v.SetDefault("debounce_window", defaults.DebounceWindow)
	v.SetDefault("idle_delay", defaults.IdleDelay)
	v.SetDefault("kill_grace", defaults.KillGrace)
	v.SetDefault("max_depth", defaults.MaxDepth)
	v.SetDefault("max_nodes", defaults.MaxNodes)
	v.SetDefault("meta_window", defaults.MetaWindow)
	v.SetDefault("profile", defaults.Profile)
	v.SetDefault("min_version", defaults.MinVersion)
	v.SetDefault("stale_changes", defaults.StaleChanges)
	v.SetDefault("stale_commits", defaults.StaleCommits)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("log.max_age_days", defaults.Log.MaxAgeDays)

	v.SetEnvPrefix("SAVEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", explicitPath, err)
		}
	} else {
		v.SetConfigName("savewatch")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "savewatch"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
