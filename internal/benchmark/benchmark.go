// Package benchmark measures the three extraction approaches this tool is
// built around (full strict parse, loose best-effort scan, span-only
// section walk) over synthetic saves of configurable shape.
//
// The span walk and loose scan should sit orders of magnitude under the
// full parse; that gap is what lets the cheap tiers run on every save while
// the full tier waits for idle time.
package benchmark

import (
	"fmt"
	"runtime"
	"sort"
	"time"
)

// Benchmark modes name the extraction approach under measurement.
const (
	// ModeStrict parses the whole document and converts it, the way the
	// full tier does.
	ModeStrict = "strict-parse"

	// ModeLoose runs the pattern-based best-effort status extraction.
	ModeLoose = "loose-scan"

	// ModeSpan walks top-level children by span without parsing, the way
	// the status tier skips to its section.
	ModeSpan = "span-scan"
)

// Modes lists every mode in comparison order.
var Modes = []string{ModeStrict, ModeLoose, ModeSpan}

// BenchmarkConfig defines the parameters for a benchmark run.
type BenchmarkConfig struct {
	// Sections is the number of generated top-level sections
	Sections int

	// EntriesPerSection is how many entries each section carries
	EntriesPerSection int

	// Iterations is how many times the extraction runs over the document
	Iterations int

	// Seed makes the generated document reproducible
	Seed int64

	// Mode specifies which extraction approach to benchmark
	Mode string
}

// DefaultConfig returns a benchmark configuration with sensible defaults.
func DefaultConfig() BenchmarkConfig {
	return BenchmarkConfig{
		Sections:          40,
		EntriesPerSection: 200,
		Iterations:        20,
		Seed:              1,
		Mode:              ModeStrict,
	}
}

// BenchmarkResult captures all metrics from a benchmark run.
type BenchmarkResult struct {
	// Configuration used for this run
	Config BenchmarkConfig

	// Latency metrics (per-run performance)
	Latency LatencyMetrics

	// Throughput metrics
	Throughput ThroughputMetrics

	// Resource usage metrics
	Resources ResourceMetrics

	// InputBytes is the size of the generated document
	InputBytes int64

	// NodesVisited is what one run of the mode saw: parsed values for the
	// strict mode, lifted fields for loose, top-level children for span
	NodesVisited int

	// Overall test metrics
	TotalDuration time.Duration
	ErrorCount    int
	ErrorRate     float64
	Success       bool
}

// LatencyMetrics captures per-run latency statistics.
type LatencyMetrics struct {
	Min  time.Duration
	P50  time.Duration // Median
	Mean time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration

	// Raw durations for analysis
	Durations []time.Duration
}

// ThroughputMetrics captures runs-per-second metrics.
type ThroughputMetrics struct {
	RunsPerSecond float64
	MBPerSecond   float64
	TotalRuns     int
}

// ResourceMetrics captures memory usage.
type ResourceMetrics struct {
	MemoryBeforeBytes uint64
	MemoryAfterBytes  uint64
	MemoryPeakBytes   uint64
	MemoryDeltaBytes  uint64
}

// ComputeStats calculates statistics from raw durations.
func ComputeStats(durations []time.Duration) LatencyMetrics {
	if len(durations) == 0 {
		return LatencyMetrics{}
	}

	// Sort for percentile calculation
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	// Calculate mean
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	mean := sum / time.Duration(len(sorted))

	// Calculate percentiles
	p50 := sorted[len(sorted)*50/100]
	p95 := sorted[len(sorted)*95/100]
	p99 := sorted[len(sorted)*99/100]

	return LatencyMetrics{
		Min:       sorted[0],
		P50:       p50,
		Mean:      mean,
		P95:       p95,
		P99:       p99,
		Max:       sorted[len(sorted)-1],
		Durations: sorted,
	}
}

// GetMemoryStats returns current memory usage statistics.
func GetMemoryStats() ResourceMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ResourceMetrics{
		MemoryBeforeBytes: m.Alloc,
		MemoryAfterBytes:  m.Alloc,
		MemoryPeakBytes:   m.Sys,
		MemoryDeltaBytes:  0,
	}
}

// CompareMemoryStats computes the delta between before and after memory stats.
func CompareMemoryStats(before, after ResourceMetrics) ResourceMetrics {
	var delta uint64
	if after.MemoryAfterBytes > before.MemoryBeforeBytes {
		delta = after.MemoryAfterBytes - before.MemoryBeforeBytes
	}

	return ResourceMetrics{
		MemoryBeforeBytes: before.MemoryBeforeBytes,
		MemoryAfterBytes:  after.MemoryAfterBytes,
		MemoryPeakBytes:   after.MemoryPeakBytes,
		MemoryDeltaBytes:  delta,
	}
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration into a human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// PrintResult outputs a formatted benchmark result.
func PrintResult(result BenchmarkResult) {
	fmt.Printf("\n=== Benchmark Results (%s mode) ===\n\n", result.Config.Mode)

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Sections:            %d\n", result.Config.Sections)
	fmt.Printf("  Entries per Section: %d\n", result.Config.EntriesPerSection)
	fmt.Printf("  Iterations:          %d\n", result.Config.Iterations)
	fmt.Printf("  Document Size:       %s\n", FormatBytes(uint64(result.InputBytes)))
	fmt.Printf("\n")

	fmt.Printf("Latency:\n")
	fmt.Printf("  Min:       %s\n", FormatDuration(result.Latency.Min))
	fmt.Printf("  P50:       %s\n", FormatDuration(result.Latency.P50))
	fmt.Printf("  Mean:      %s\n", FormatDuration(result.Latency.Mean))
	fmt.Printf("  P95:       %s\n", FormatDuration(result.Latency.P95))
	fmt.Printf("  P99:       %s\n", FormatDuration(result.Latency.P99))
	fmt.Printf("  Max:       %s\n", FormatDuration(result.Latency.Max))
	fmt.Printf("\n")

	fmt.Printf("Throughput:\n")
	fmt.Printf("  Runs/sec:          %.2f\n", result.Throughput.RunsPerSecond)
	fmt.Printf("  MB/sec:            %.2f\n", result.Throughput.MBPerSecond)
	fmt.Printf("  Total Runs:        %d\n", result.Throughput.TotalRuns)
	fmt.Printf("\n")

	fmt.Printf("Resources:\n")
	fmt.Printf("  Memory Before:     %s\n", FormatBytes(result.Resources.MemoryBeforeBytes))
	fmt.Printf("  Memory After:      %s\n", FormatBytes(result.Resources.MemoryAfterBytes))
	fmt.Printf("  Memory Peak:       %s\n", FormatBytes(result.Resources.MemoryPeakBytes))
	fmt.Printf("  Memory Delta:      %s\n", FormatBytes(result.Resources.MemoryDeltaBytes))
	fmt.Printf("\n")

	fmt.Printf("Extraction:\n")
	fmt.Printf("  Nodes Visited:     %d\n", result.NodesVisited)
	fmt.Printf("\n")

	fmt.Printf("Overall:\n")
	fmt.Printf("  Total Duration:    %s\n", FormatDuration(result.TotalDuration))
	fmt.Printf("  Errors:            %d (%.2f%%)\n", result.ErrorCount, result.ErrorRate*100)
	fmt.Printf("  Success:           %v\n", result.Success)
	fmt.Printf("\n")
}
