package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/savewatch/internal/extract"
	"github.com/mschirtzinger/savewatch/internal/savefile"
	"github.com/mschirtzinger/savewatch/internal/savetext"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	Short:  "Run one tier extraction and emit its payload (internal)",
	Long: `Worker is the subprocess half of the ingestion pipeline. The watch daemon
re-invokes its own binary with this subcommand once per dispatched tier, so
cancelling a slow extraction is an ordinary process kill.

The payload envelope is written to stdout as a single JSON document; any
failure goes to stderr with a nonzero exit. Workers never retry and never
outlive one extraction.`,
	Run: runWorker,
}

func init() {
	workerCmd.Flags().String("tier", "", "Extraction tier: 0|1|2 or meta|status|full")
	workerCmd.Flags().String("save", "", "Path of the save file to extract")
	workerCmd.Flags().String("profile", "", "Status extraction profile (TOML)")
	workerCmd.Flags().String("min-version", "", "Lowest supported save version, e.g. 3.0.0")
	workerCmd.Flags().Int("max-depth", 0, "Maximum block nesting depth (0 = default)")
	workerCmd.Flags().Int("max-nodes", 0, "Maximum parsed node count (0 = default)")
	workerCmd.Flags().Int64("meta-window", 0, "Metadata head window for plain saves, in bytes (0 = default)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) {
	tierStr, _ := cmd.Flags().GetString("tier")
	savePath, _ := cmd.Flags().GetString("save")
	profilePath, _ := cmd.Flags().GetString("profile")
	minVersion, _ := cmd.Flags().GetString("min-version")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	maxNodes, _ := cmd.Flags().GetInt("max-nodes")
	metaWindow, _ := cmd.Flags().GetInt64("meta-window")

	if tierStr == "" {
		fmt.Fprintf(os.Stderr, "Error: --tier is required\n")
		os.Exit(1)
	}
	if savePath == "" {
		fmt.Fprintf(os.Stderr, "Error: --save is required\n")
		os.Exit(1)
	}

	tier, err := extract.ParseTier(tierStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := extract.Options{
		Limits:     workerLimits(maxDepth, maxNodes),
		MinVersion: minVersion,
	}
	if profilePath != "" {
		profile, err := extract.LoadProfile(profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts.Profile = profile
	}

	reader, err := savefile.OpenWindow(savePath, metaWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	payload, err := extractOne(reader, tier, opts, savePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := extract.WritePayload(os.Stdout, payload); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func workerLimits(maxDepth, maxNodes int) savetext.Limits {
	limits := savetext.DefaultLimits()
	if maxDepth > 0 {
		limits.MaxDepth = maxDepth
	}
	if maxNodes > 0 {
		limits.MaxNodes = maxNodes
	}
	return limits
}

// extractOne runs one tier over an opened save. The meta tier reads the
// bounded head window; the others read the full body. This is the one
// extraction path in the binary: workers, the extract command, and
// therefore the cache all agree byte for byte.
func extractOne(r savefile.Reader, tier extract.Tier, opts extract.Options, savePath string) (*extract.Payload, error) {
	var input []byte
	var err error
	if tier == extract.TierMeta {
		input, err = r.Meta()
	} else {
		input, err = r.Body()
	}
	if err != nil {
		return nil, err
	}

	payload, err := extract.ExtractTier(tier, input, opts)
	if err != nil {
		return nil, err
	}
	payload.SavePath = savePath
	return payload, nil
}
