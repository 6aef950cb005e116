package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/savewatch/internal/benchmark"
)

var benchmarkCmd = &cobra.Command{
	Use:     "benchmark",
	GroupID: "maint",
	Short:   "Benchmark extraction strategies over generated saves",
	Long: `Run performance benchmarks over deterministic generated save documents.

This command generates a save-shaped document of the requested size, then
measures latency, throughput, and memory for the extraction strategies the
tiers are built on.

Modes:
  compare      - Run every strategy, show comparison (default)
  strict-parse - Full document parse (what the full tier pays)
  loose-scan   - Bounded best-effort scan (the cheap-tier fallback)
  span-scan    - Top-level section walk without materializing blocks

Examples:
  # Compare with default settings (40 sections x 200 entries)
  savewatch benchmark

  # Compare over a bigger document
  savewatch benchmark --sections 80 --entries 400

  # Just the strict parse, as JSON
  savewatch benchmark --mode strict-parse --json

  # How each strategy scales with document size
  savewatch benchmark --scaling
`,
	Run: runBenchmark,
}

func init() {
	benchmarkCmd.Flags().Int("sections", 40, "Number of generated top-level sections")
	benchmarkCmd.Flags().Int("entries", 200, "Entries per generated section")
	benchmarkCmd.Flags().Int("iterations", 20, "Measured runs per mode")
	benchmarkCmd.Flags().Int64("seed", 1, "Document generator seed")
	benchmarkCmd.Flags().String("mode", "compare", "Benchmark mode: compare, strict-parse, loose-scan, or span-scan")
	benchmarkCmd.Flags().Bool("scaling", false, "Run the document-size scaling study instead")
	benchmarkCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchmarkCmd)
}

func runBenchmark(cmd *cobra.Command, args []string) {
	sections, _ := cmd.Flags().GetInt("sections")
	entries, _ := cmd.Flags().GetInt("entries")
	iterations, _ := cmd.Flags().GetInt("iterations")
	seed, _ := cmd.Flags().GetInt64("seed")
	mode, _ := cmd.Flags().GetString("mode")
	scaling, _ := cmd.Flags().GetBool("scaling")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Validate flags
	if sections <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --sections must be positive\n")
		os.Exit(1)
	}
	if entries <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --entries must be positive\n")
		os.Exit(1)
	}
	if iterations <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --iterations must be positive\n")
		os.Exit(1)
	}
	if mode != "compare" && !validBenchmarkMode(mode) {
		fmt.Fprintf(os.Stderr, "Error: --mode must be 'compare' or one of: %s\n", strings.Join(benchmark.Modes, ", "))
		os.Exit(1)
	}

	if scaling {
		runScalingBenchmark(sections, seed, jsonOutput)
		return
	}

	config := benchmark.BenchmarkConfig{
		Sections:          sections,
		EntriesPerSection: entries,
		Iterations:        iterations,
		Seed:              seed,
		Mode:              mode,
	}

	if mode == "compare" {
		runCompareBenchmark(config, jsonOutput)
		return
	}
	runSingleBenchmark(config, jsonOutput)
}

func validBenchmarkMode(mode string) bool {
	for _, m := range benchmark.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

func runCompareBenchmark(config benchmark.BenchmarkConfig, jsonOutput bool) {
	if !jsonOutput {
		fmt.Println("Running extraction benchmark comparison...")
		fmt.Printf("Configuration: %d sections, %d entries/section, %d iterations, seed %d\n\n",
			config.Sections, config.EntriesPerSection, config.Iterations, config.Seed)
	}

	result, err := benchmark.Compare(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		outputComparisonJSON(result)
	} else {
		benchmark.PrintComparison(result)
	}

	for _, mode := range benchmark.Modes {
		if result.Results[mode].ErrorCount > 0 {
			os.Exit(1)
		}
	}
}

func runSingleBenchmark(config benchmark.BenchmarkConfig, jsonOutput bool) {
	if !jsonOutput {
		fmt.Printf("Running %s benchmark...\n", config.Mode)
		fmt.Printf("Configuration: %d sections, %d entries/section, %d iterations\n\n",
			config.Sections, config.EntriesPerSection, config.Iterations)
	}

	result, err := benchmark.RunBenchmark(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		outputResultJSON(result)
	} else {
		benchmark.PrintResult(*result)
	}

	if result.ErrorCount > 0 {
		os.Exit(1)
	}
}

func runScalingBenchmark(sections int, seed int64, jsonOutput bool) {
	config := benchmark.DefaultScalingConfig()
	config.Sections = sections
	config.Seed = seed

	results, err := benchmark.RunScaling(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		outputScalingJSON(results)
		return
	}
	benchmark.PrintScaling(results)
}

func outputResultJSON(result *benchmark.BenchmarkResult) {
	output := map[string]interface{}{
		"config": map[string]interface{}{
			"mode":       result.Config.Mode,
			"sections":   result.Config.Sections,
			"entries":    result.Config.EntriesPerSection,
			"iterations": result.Config.Iterations,
			"seed":       result.Config.Seed,
		},
		"latency":     latencyJSON(result.Latency),
		"throughput":  throughputJSON(result.Throughput),
		"memory":      memoryJSON(result.Resources),
		"input_bytes": result.InputBytes,
		"nodes":       result.NodesVisited,
		"duration_ms": result.TotalDuration.Milliseconds(),
		"errors":      result.ErrorCount,
		"error_rate":  result.ErrorRate,
		"success":     result.Success,
	}
	writeJSON(output)
}

func outputComparisonJSON(result *benchmark.ComparisonResult) {
	modes := make(map[string]interface{}, len(result.Results))
	for mode, r := range result.Results {
		modes[mode] = map[string]interface{}{
			"latency":    latencyJSON(r.Latency),
			"throughput": throughputJSON(r.Throughput),
			"memory":     memoryJSON(r.Resources),
			"nodes":      r.NodesVisited,
			"errors":     r.ErrorCount,
		}
	}
	output := map[string]interface{}{
		"config": map[string]interface{}{
			"sections":   firstResult(result).Config.Sections,
			"entries":    firstResult(result).Config.EntriesPerSection,
			"iterations": firstResult(result).Config.Iterations,
			"seed":       firstResult(result).Config.Seed,
		},
		"modes":             modes,
		"speedup_vs_strict": result.SpeedupVsStrict,
		"fastest_mode":      result.FastestMode,
	}
	writeJSON(output)
}

func outputScalingJSON(results *benchmark.ScalingResults) {
	points := make([]map[string]interface{}, 0, len(results.Points))
	for _, p := range results.Points {
		points = append(points, map[string]interface{}{
			"mode":           p.Mode,
			"entries":        p.EntryCount,
			"document_bytes": p.DocumentBytes,
			"latency":        latencyJSON(p.Latency),
		})
	}
	output := map[string]interface{}{
		"config": map[string]interface{}{
			"entry_counts":     results.Config.EntryCounts,
			"sections":         results.Config.Sections,
			"warmup_runs":      results.Config.WarmupRuns,
			"measurement_runs": results.Config.MeasurementRuns,
			"seed":             results.Config.Seed,
		},
		"system": map[string]interface{}{
			"os":         results.SystemInfo.OS,
			"arch":       results.SystemInfo.Arch,
			"cpus":       results.SystemInfo.CPUs,
			"go_version": results.SystemInfo.GoVersion,
		},
		"points":      points,
		"duration_ms": results.Duration.Milliseconds(),
	}
	writeJSON(output)
}

func latencyJSON(l benchmark.LatencyMetrics) map[string]interface{} {
	return map[string]interface{}{
		"min_us":  l.Min.Microseconds(),
		"p50_us":  l.P50.Microseconds(),
		"mean_us": l.Mean.Microseconds(),
		"p95_us":  l.P95.Microseconds(),
		"p99_us":  l.P99.Microseconds(),
		"max_us":  l.Max.Microseconds(),
	}
}

func throughputJSON(t benchmark.ThroughputMetrics) map[string]interface{} {
	return map[string]interface{}{
		"runs_per_sec": t.RunsPerSecond,
		"mb_per_sec":   t.MBPerSecond,
		"runs":         t.TotalRuns,
	}
}

func memoryJSON(r benchmark.ResourceMetrics) map[string]interface{} {
	return map[string]interface{}{
		"before_bytes": r.MemoryBeforeBytes,
		"after_bytes":  r.MemoryAfterBytes,
		"peak_bytes":   r.MemoryPeakBytes,
		"delta_bytes":  r.MemoryDeltaBytes,
	}
}

func firstResult(result *benchmark.ComparisonResult) benchmark.BenchmarkResult {
	for _, mode := range benchmark.Modes {
		if r, ok := result.Results[mode]; ok {
			return r
		}
	}
	return benchmark.BenchmarkResult{}
}

func writeJSON(output map[string]interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
