package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/savewatch/internal/config"
	"github.com/mschirtzinger/savewatch/internal/extract"
	"github.com/mschirtzinger/savewatch/internal/savefile"
	"github.com/mschirtzinger/savewatch/internal/ui"
)

var extractCmd = &cobra.Command{
	Use:     "extract <save-file>",
	GroupID: "core",
	Short:   "Extract one save file in-process and print the payload",
	Long: `Extract runs the tier extraction once, in-process, and prints the payload
envelope. It goes through the same reader and extractor path as the watch
daemon's workers, so the output is byte-identical to what a worker would
commit for the same save.

Examples:
  # Full extraction of one save, JSON on stdout
  savewatch extract autosave.sav

  # Just the metadata tier
  savewatch extract autosave.sav --tier meta

  # Every tier, as YAML, written atomically to a file
  savewatch extract autosave.sav --tier all --format yaml --out save.yaml
`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

func init() {
	extractCmd.Flags().String("tier", "all", "Extraction tier: 0|1|2, meta|status|full, or all")
	extractCmd.Flags().String("format", "json", "Output format: json or yaml")
	extractCmd.Flags().StringP("out", "o", "", "Write output to this file instead of stdout (atomic)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) {
	savePath := args[0]
	tierStr, _ := cmd.Flags().GetString("tier")
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	if format != "json" && format != "yaml" {
		fmt.Fprintf(os.Stderr, "Error: --format must be 'json' or 'yaml'\n")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts, err := extractionOptions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	reader, err := savefile.OpenWindow(savePath, cfg.MetaWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	var doc any
	if tierStr == "all" {
		payloads := make([]*extract.Payload, 0, extract.NumTiers)
		for t := extract.TierMeta; t <= extract.TierFull; t++ {
			payload, err := extractOne(reader, t, opts, savePath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: tier %s: %v\n", t, err)
				os.Exit(1)
			}
			payloads = append(payloads, payload)
		}
		doc = payloads
	} else {
		tier, err := extract.ParseTier(tierStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		payload, err := extractOne(reader, tier, opts, savePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		doc = payload
	}

	data, err := renderDoc(doc, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if outPath == "" {
		os.Stdout.Write(data)
		return
	}
	if err := atomic.WriteFile(outPath, bytes.NewReader(data)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("%s Wrote %s (%d bytes, %s)\n", ui.RenderPass("✓"), outPath, len(data), format)
}

// extractionOptions maps the loaded configuration onto extraction knobs,
// resolving the profile path if one is configured.
func extractionOptions(cfg *config.Config) (extract.Options, error) {
	opts := extract.Options{
		Limits:     workerLimits(cfg.MaxDepth, cfg.MaxNodes),
		MinVersion: cfg.MinVersion,
	}
	if cfg.Profile != "" {
		profile, err := extract.LoadProfile(cfg.Profile)
		if err != nil {
			return extract.Options{}, err
		}
		opts.Profile = profile
	}
	return opts, nil
}

// renderDoc marshals through JSON first so the YAML rendering carries the
// exact wire field names instead of yaml.v3's lowercased Go names.
func renderDoc(doc any, format string) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	if format == "json" {
		return append(data, '\n'), nil
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to re-read payload: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload as yaml: %w", err)
	}
	return out, nil
}
