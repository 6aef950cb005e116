package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/savewatch/internal/config"
	"github.com/mschirtzinger/savewatch/internal/ui"
)

const configFileName = "savewatch.toml"

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "core",
	Short:   "Create a savewatch.toml with an interactive wizard",
	Long: `Init walks through the first-run questions and writes a commented
savewatch.toml in the current directory:

1. Which directory holds the saves
2. Which file extensions count as saves
3. Confirmation before anything is written

The remaining settings get documented defaults; edit the file to change
them. Use --force to overwrite an existing config.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing savewatch.toml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(configFileName); err == nil && !force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", configFileName)
		os.Exit(1)
	}

	var (
		watchDir  string
		exts      []string
		confirmed bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Saves directory").
				Description("The directory your game writes save files into.").
				Placeholder("~/Documents/saves").
				Value(&watchDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("directory is required")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Save extensions").
				Description("Files with other extensions are ignored.").
				Options(
					huh.NewOption(".sav", ".sav").Selected(true),
					huh.NewOption(".eu4", ".eu4"),
					huh.NewOption(".ck3", ".ck3"),
					huh.NewOption(".hoi4", ".hoi4"),
					huh.NewOption(".v3", ".v3"),
				).
				Value(&exts),
			huh.NewConfirm().
				Title("Write " + configFileName + "?").
				Affirmative("Write").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "Aborted.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	if !confirmed {
		fmt.Println("Nothing written.")
		return
	}

	cfg := config.DefaultConfig()
	cfg.WatchDir = expandHome(strings.TrimSpace(watchDir))
	if len(exts) > 0 {
		cfg.Extensions = exts
	}

	data, err := renderConfigTOML(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := atomic.WriteFile(configFileName, bytes.NewReader(data)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", configFileName, err)
		os.Exit(1)
	}

	fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), configFileName)
	fmt.Printf("   Watch directory: %s\n", cfg.WatchDir)
	fmt.Printf("   Extensions: %s\n", strings.Join(cfg.Extensions, ", "))
	fmt.Printf("\nRun 'savewatch watch' to start the pipeline.\n")
}

// fileConfig mirrors config.Config with durations as strings, so the
// generated file reads the way a person would write it ("500ms", not
// 500000000).
type fileConfig struct {
	WatchDir       string        `toml:"watch_dir"`
	Extensions     []string      `toml:"extensions"`
	DebounceWindow string        `toml:"debounce_window"`
	IdleDelay      string        `toml:"idle_delay"`
	KillGrace      string        `toml:"kill_grace"`
	MaxDepth       int           `toml:"max_depth"`
	MaxNodes       int           `toml:"max_nodes"`
	MetaWindow     int64         `toml:"meta_window"`
	Profile        string        `toml:"profile,omitempty"`
	MinVersion     string        `toml:"min_version,omitempty"`
	StaleChanges   uint64        `toml:"stale_changes"`
	StaleCommits   uint64        `toml:"stale_commits"`
	Log            fileLogConfig `toml:"log"`
}

type fileLogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

func renderConfigTOML(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# savewatch configuration.\n")
	fmt.Fprintf(&buf, "# Durations use Go syntax: 500ms, 2s, 1m.\n")
	fmt.Fprintf(&buf, "# Any value here can be overridden with a SAVEWATCH_* environment\n")
	fmt.Fprintf(&buf, "# variable, e.g. SAVEWATCH_DEBOUNCE_WINDOW=1s.\n\n")

	fc := fileConfig{
		WatchDir:       cfg.WatchDir,
		Extensions:     cfg.Extensions,
		DebounceWindow: cfg.DebounceWindow.String(),
		IdleDelay:      cfg.IdleDelay.String(),
		KillGrace:      cfg.KillGrace.String(),
		MaxDepth:       cfg.MaxDepth,
		MaxNodes:       cfg.MaxNodes,
		MetaWindow:     cfg.MetaWindow,
		Profile:        cfg.Profile,
		MinVersion:     cfg.MinVersion,
		StaleChanges:   cfg.StaleChanges,
		StaleCommits:   cfg.StaleCommits,
		Log: fileLogConfig{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
	}
	if err := toml.NewEncoder(&buf).Encode(fc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
