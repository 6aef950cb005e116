package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/savewatch/internal/ui"
)

var version = "0.3.0-dev"

var (
	cfgFile string
	noColor bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "savewatch",
	Short: "Tiered background extraction for game save files",
	Long: `Savewatch watches a saves directory and keeps extracted summaries of the
newest save fresh, without ever blocking on a parse.

Extraction runs in three escalating-cost tiers:
  0. meta   - the save's self-description (version, date, player)
  1. status - the handful of headline fields a consumer shows first
  2. full   - the whole-document extraction

Each tier runs in its own worker process so a newer save can cancel it
outright. The newest committed result per tier is always available, even
while a fresher one is still being computed.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetNoColor(true)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("savewatch %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./savewatch.toml, then ~/.config/savewatch/)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every pipeline transition, not just commits")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Subcommand errors have already been
// printed by the time it returns.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
