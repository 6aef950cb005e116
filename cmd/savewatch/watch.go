package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/natefinch/atomic"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/savewatch/internal/config"
	"github.com/mschirtzinger/savewatch/internal/extract"
	"github.com/mschirtzinger/savewatch/internal/ingest"
	"github.com/mschirtzinger/savewatch/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch [dir]",
	GroupID: "core",
	Short:   "Watch a saves directory and keep tiered extractions fresh",
	Long: `Watch runs the ingestion pipeline in the foreground:

1. Watches the saves directory for creates and writes
2. Waits for each new save's size and mtime to hold still
3. Dispatches the cheap tiers (meta, status) to worker processes
4. Dispatches the full tier once the directory goes quiet
5. Commits each worker's payload into the per-tier result cache

A newer save cancels in-flight workers outright; their half-finished
results are discarded, never committed. The full tier is also refreshed
whenever enough changes or cheap-tier commits have accumulated since its
last commit.

Examples:
  # Watch the configured directory
  savewatch watch

  # Watch an explicit directory, seeding only recent saves
  savewatch watch ~/saves --since "2 hours ago"

  # Mirror every committed payload to JSON files
  savewatch watch --export-dir ./extracted
`,
	Args: cobra.MaximumNArgs(1),
	Run:  runWatch,
}

func init() {
	watchCmd.Flags().String("since", "", "Seed only saves modified after this time (\"yesterday\", \"2 hours ago\")")
	watchCmd.Flags().String("export-dir", "", "Write each committed payload to this directory as JSON")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	sinceStr, _ := cmd.Flags().GetString("since")
	exportDir, _ := cmd.Flags().GetString("export-dir")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(args) > 0 {
		cfg.WatchDir = args[0]
	}
	if cfg.WatchDir == "" {
		fmt.Fprintf(os.Stderr, "Error: no watch directory (pass one, set watch_dir in the config, or run 'savewatch init')\n")
		os.Exit(1)
	}

	var since time.Time
	if sinceStr != "" {
		since, err = parseSince(sinceStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create export directory: %v\n", err)
			os.Exit(1)
		}
	}

	logger := log.New(cfg.Log.Writer(), "[savewatch] ", log.LstdFlags)

	runner, err := ingest.NewSubprocessRunner(workerArgs(cfg)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cache := ingest.NewCache()
	co, err := ingest.New(cache, runner, &ingest.Config{
		DebounceWindow: cfg.DebounceWindow,
		IdleDelay:      cfg.IdleDelay,
		KillGrace:      cfg.KillGrace,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := co.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer co.Stop()

	watcher, err := ingest.NewWatcher(cfg.WatchDir, cfg.Extensions, co.NotifyFileChanged, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := watcher.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to watch %s: %v\n", cfg.WatchDir, err)
		os.Exit(1)
	}
	defer watcher.Stop()

	fmt.Printf("%s Watching %s\n", ui.RenderAccent("🔄"), cfg.WatchDir)
	if len(cfg.Extensions) > 0 {
		fmt.Printf("   Extensions: %s\n", strings.Join(cfg.Extensions, ", "))
	}
	fmt.Printf("   Debounce %s, idle delay %s\n", cfg.DebounceWindow, cfg.IdleDelay)
	if exportDir != "" {
		fmt.Printf("   Exporting payloads to %s\n", exportDir)
	}

	if seed, ok := newestSave(cfg.WatchDir, cfg.Extensions, since); ok {
		fmt.Printf("%s Seeding %s\n", ui.RenderAccent("🚀"), filepath.Base(seed))
		co.NotifyFileChanged(seed)
	} else if sinceStr != "" {
		fmt.Printf("   No saves modified since %s\n", since.Format(time.RFC1123))
	}

	fmt.Println("\nPress Ctrl+C to stop...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Two staleness counters for the full tier: candidate changes observed
	// and cheap-tier commits landed since its last commit.
	var counters [2]uint64
	thresholds := [2]uint64{cfg.StaleChanges, cfg.StaleCommits}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return

		case ev := <-co.Events():
			switch ev.Kind {
			case ingest.EventDispatched:
				if ev.Tier == extract.TierMeta {
					counters[0]++
				}
				if verbose {
					fmt.Printf("%s\n", ui.RenderMuted(fmt.Sprintf("→ %s #%d dispatched (%s)", ev.Tier, ev.Generation, filepath.Base(ev.Path))))
				}

			case ingest.EventCommitted:
				line := fmt.Sprintf("%s %s #%d committed", ui.RenderPass("✓"), ev.Tier, ev.Generation)
				if res, ok := co.Result(ev.Tier); ok && res.Generation == ev.Generation {
					line += fmt.Sprintf(" in %s", res.Duration.Round(time.Millisecond))
					if summary := payloadSummary(res.Payload); summary != "" {
						line += " " + summary
					}
					if exportDir != "" {
						if err := exportResult(exportDir, res); err != nil {
							fmt.Printf("%s export failed: %v\n", ui.RenderWarn("⚠"), err)
						}
					}
				}
				fmt.Println(line)

				if ev.Tier == extract.TierFull {
					counters = [2]uint64{}
				} else {
					counters[1]++
				}

			case ingest.EventFailed:
				fmt.Printf("%s %s #%d failed: %v\n", ui.RenderWarn("⚠"), ev.Tier, ev.Generation, ev.Err)

			case ingest.EventUnreadable:
				fmt.Printf("%s %s unreadable: %v\n", ui.RenderWarn("⚠"), filepath.Base(ev.Path), ev.Err)

			case ingest.EventSuperseded, ingest.EventDiscarded:
				if verbose {
					fmt.Printf("%s\n", ui.RenderMuted(fmt.Sprintf("✗ %s #%d %s", ev.Tier, ev.Generation, ev.Kind)))
				}
			}

			if ingest.IsStale(counters, thresholds) {
				fmt.Printf("%s Staleness thresholds reached, refreshing full tier\n", ui.RenderAccent("📊"))
				co.RequestTierNow(extract.TierFull)
				counters = [2]uint64{}
			}
		}
	}
}

// parseSince turns a natural-language point in time into a cutoff.
func parseSince(s string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand --since %q (try \"yesterday\" or \"2 hours ago\")", s)
	}
	return r.Time, nil
}

// workerArgs builds the flags every worker invocation shares, carrying the
// parent's resolved configuration down so children never load config files.
func workerArgs(cfg *config.Config) []string {
	var args []string
	if cfg.Profile != "" {
		args = append(args, "--profile", cfg.Profile)
	}
	if cfg.MinVersion != "" {
		args = append(args, "--min-version", cfg.MinVersion)
	}
	if cfg.MaxDepth > 0 {
		args = append(args, "--max-depth", strconv.Itoa(cfg.MaxDepth))
	}
	if cfg.MaxNodes > 0 {
		args = append(args, "--max-nodes", strconv.Itoa(cfg.MaxNodes))
	}
	if cfg.MetaWindow > 0 {
		args = append(args, "--meta-window", strconv.FormatInt(cfg.MetaWindow, 10))
	}
	return args
}

// newestSave finds the most recently modified save in dir, ignoring files
// older than since when it is nonzero.
func newestSave(dir string, exts []string, since time.Time) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !hasSaveExt(entry.Name(), exts) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !since.IsZero() && info.ModTime().Before(since) {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, entry.Name())
			newestMod = info.ModTime()
		}
	}
	return newest, newest != ""
}

func hasSaveExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	got := strings.ToLower(filepath.Ext(name))
	for _, ext := range exts {
		want := strings.ToLower(ext)
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if got == want {
			return true
		}
	}
	return false
}

// exportResult mirrors one committed payload to <dir>/<tier>.json. The
// write is atomic so a concurrent reader never sees a torn file.
func exportResult(dir string, res *ingest.TierResult) error {
	data, err := json.MarshalIndent(res.Payload, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return atomic.WriteFile(filepath.Join(dir, res.Tier.String()+".json"), bytes.NewReader(data))
}

// payloadSummary is the one-line parenthetical printed after a commit.
func payloadSummary(p *extract.Payload) string {
	switch {
	case p == nil:
		return ""
	case p.Meta != nil:
		parts := make([]string, 0, 3)
		if p.Meta.Date != "" {
			parts = append(parts, p.Meta.Date)
		}
		if p.Meta.Player != "" {
			parts = append(parts, "player "+p.Meta.Player)
		}
		if p.Meta.Version != "" {
			parts = append(parts, "v"+p.Meta.Version)
		}
		if len(parts) == 0 {
			return ""
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case p.Status != nil:
		return fmt.Sprintf("(%d fields)", len(p.Status.Fields))
	case p.Full != nil:
		return fmt.Sprintf("(%d sections, %d nodes)", len(p.Full.Sections), p.Full.TotalNodes)
	default:
		return ""
	}
}
