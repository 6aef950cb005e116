package benchmark

import (
	"fmt"
	"strings"
	"time"
)

// ComparisonResult contains the results of benchmarking every mode over the
// same generated document.
type ComparisonResult struct {
	// Results holds one run per mode.
	Results map[string]BenchmarkResult

	// SpeedupVsStrict is mode → how many times faster than the full strict
	// parse its mean run was (1.0 for the strict mode itself).
	SpeedupVsStrict map[string]float64

	// FastestMode has the lowest mean latency.
	FastestMode string
}

// Compare runs all benchmark modes with the same config and document.
func Compare(config BenchmarkConfig) (*ComparisonResult, error) {
	result := &ComparisonResult{
		Results:         make(map[string]BenchmarkResult),
		SpeedupVsStrict: make(map[string]float64),
	}

	for _, mode := range Modes {
		fmt.Printf("Running %s benchmark...\n", mode)
		cfg := config
		cfg.Mode = mode
		r, err := RunBenchmark(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s benchmark failed: %w", mode, err)
		}
		result.Results[mode] = *r
	}

	strictMean := result.Results[ModeStrict].Latency.Mean
	var best time.Duration
	for _, mode := range Modes {
		mean := result.Results[mode].Latency.Mean
		if mean > 0 && strictMean > 0 {
			result.SpeedupVsStrict[mode] = float64(strictMean) / float64(mean)
		}
		if mean > 0 && (best == 0 || mean < best) {
			best = mean
			result.FastestMode = mode
		}
	}

	return result, nil
}

// PrintComparison outputs a formatted comparison report.
func PrintComparison(result *ComparisonResult) {
	separator := strings.Repeat("=", 80)
	fmt.Printf("\n%s\n", separator)
	fmt.Printf("EXTRACTION BENCHMARK: strict parse vs loose scan vs span scan\n")
	fmt.Printf("%s\n\n", separator)

	strict := result.Results[ModeStrict]
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Sections:            %d\n", strict.Config.Sections)
	fmt.Printf("  Entries per Section: %d\n", strict.Config.EntriesPerSection)
	fmt.Printf("  Iterations:          %d\n", strict.Config.Iterations)
	fmt.Printf("  Document Size:       %s\n\n", FormatBytes(uint64(strict.InputBytes)))

	fmt.Printf("LATENCY COMPARISON:\n")
	fmt.Printf("%-14s | %-10s | %-10s | %-10s | %-12s | %-10s\n",
		"Mode", "P50", "P95", "Max", "Runs/sec", "Speedup")
	fmt.Printf("%s\n", strings.Repeat("-", 80))
	for _, mode := range Modes {
		r := result.Results[mode]
		fmt.Printf("%-14s | %-10s | %-10s | %-10s | %-12.2f | %-10s\n",
			mode,
			FormatDuration(r.Latency.P50),
			FormatDuration(r.Latency.P95),
			FormatDuration(r.Latency.Max),
			r.Throughput.RunsPerSecond,
			formatSpeedup(result.SpeedupVsStrict[mode]))
	}
	fmt.Printf("\n")

	fmt.Printf("MEMORY COMPARISON:\n")
	for _, mode := range Modes {
		r := result.Results[mode]
		fmt.Printf("  %-14s delta: %s\n", mode, FormatBytes(r.Resources.MemoryDeltaBytes))
	}
	fmt.Printf("\n")

	fmt.Printf("SUMMARY:\n")
	fmt.Printf("  Fastest Mode: %s\n\n", result.FastestMode)

	fmt.Printf("KEY INSIGHTS:\n")
	if s := result.SpeedupVsStrict[ModeSpan]; s > 1 {
		fmt.Printf("  ✓ Span scan is %.0fx faster than the full parse\n", s)
	}
	if s := result.SpeedupVsStrict[ModeLoose]; s > 1 {
		fmt.Printf("  ✓ Loose scan is %.0fx faster than the full parse\n", s)
	}
	for _, mode := range Modes {
		if r := result.Results[mode]; r.ErrorCount > 0 {
			fmt.Printf("  ✗ %s hit %d errors\n", mode, r.ErrorCount)
		}
	}
	fmt.Printf("\n%s\n\n", separator)
}

func formatSpeedup(s float64) string {
	if s == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fx", s)
}
