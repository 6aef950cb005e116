package benchmark

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ScalingConfig configures a multi-size benchmark study.
type ScalingConfig struct {
	// EntryCounts is the list of entries-per-section sizes to test
	// Example: []int{50, 100, 200, 400}
	EntryCounts []int

	// Sections is the section count shared by every generated document
	Sections int

	// WarmupRuns is the number of unmeasured iterations before measuring.
	// This eliminates cold-start effects (allocator warmup, page cache)
	WarmupRuns int

	// MeasurementRuns is the number of measured iterations per point
	MeasurementRuns int

	// Seed makes the generated documents reproducible
	Seed int64
}

// DefaultScalingConfig returns a ladder wide enough to show the curves.
func DefaultScalingConfig() ScalingConfig {
	return ScalingConfig{
		EntryCounts:     []int{50, 100, 200, 400},
		Sections:        30,
		WarmupRuns:      2,
		MeasurementRuns: 10,
		Seed:            1,
	}
}

// ScalingPoint is one (document size, mode) measurement.
type ScalingPoint struct {
	Mode          string
	EntryCount    int
	DocumentBytes int64
	Latency       LatencyMetrics
}

// SystemInfo captures the environment for reproducibility.
type SystemInfo struct {
	OS        string
	Arch      string
	CPUs      int
	GoVersion string
}

// ScalingResults holds every measured point of a scaling study.
type ScalingResults struct {
	Config     ScalingConfig
	Points     []ScalingPoint
	SystemInfo SystemInfo
	StartTime  time.Time
	Duration   time.Duration
}

// RunScaling measures every mode across the document-size ladder.
func RunScaling(config ScalingConfig) (*ScalingResults, error) {
	results := &ScalingResults{
		Config:    config,
		StartTime: time.Now(),
		SystemInfo: SystemInfo{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUs:      runtime.NumCPU(),
			GoVersion: runtime.Version(),
		},
	}

	fmt.Printf("Running scaling study: %d sizes x %d modes, %d+%d runs each\n",
		len(config.EntryCounts), len(Modes), config.WarmupRuns, config.MeasurementRuns)
	fmt.Printf("System: %s/%s, %d CPUs, %s\n",
		results.SystemInfo.OS, results.SystemInfo.Arch,
		results.SystemInfo.CPUs, results.SystemInfo.GoVersion)

	for _, entries := range config.EntryCounts {
		doc := Generate(BenchmarkConfig{
			Sections:          config.Sections,
			EntriesPerSection: entries,
			Seed:              config.Seed,
		})

		for _, mode := range Modes {
			run, err := runnerFor(mode)
			if err != nil {
				return nil, err
			}

			for i := 0; i < config.WarmupRuns; i++ {
				if _, err := run(doc); err != nil {
					return nil, fmt.Errorf("%s warmup failed at %d entries: %w", mode, entries, err)
				}
			}

			durations := make([]time.Duration, 0, config.MeasurementRuns)
			for i := 0; i < config.MeasurementRuns; i++ {
				start := time.Now()
				if _, err := run(doc); err != nil {
					return nil, fmt.Errorf("%s run failed at %d entries: %w", mode, entries, err)
				}
				durations = append(durations, time.Since(start))
			}

			results.Points = append(results.Points, ScalingPoint{
				Mode:          mode,
				EntryCount:    entries,
				DocumentBytes: int64(len(doc)),
				Latency:       ComputeStats(durations),
			})
		}
	}

	results.Duration = time.Since(results.StartTime)
	return results, nil
}

// PrintScaling prints the study as a table and an ASCII latency graph.
func PrintScaling(results *ScalingResults) {
	separator := strings.Repeat("=", 80)
	fmt.Printf("\n%s\n", separator)
	fmt.Printf("SCALING STUDY: extraction cost vs document size\n")
	fmt.Printf("%s\n\n", separator)

	fmt.Printf("%-10s | %-12s | %-14s | %-10s | %-10s\n",
		"Entries", "Size", "Mode", "Mean", "P95")
	fmt.Printf("%s\n", strings.Repeat("-", 70))
	for _, p := range results.Points {
		fmt.Printf("%-10d | %-12s | %-14s | %-10s | %-10s\n",
			p.EntryCount,
			FormatBytes(uint64(p.DocumentBytes)),
			p.Mode,
			FormatDuration(p.Latency.Mean),
			FormatDuration(p.Latency.P95))
	}
	fmt.Printf("\n")

	printScalingGraph(results)

	fmt.Printf("Total: %s\n\n%s\n\n", FormatDuration(results.Duration), separator)
}

// printScalingGraph draws mean latency bars grouped by document size.
func printScalingGraph(results *ScalingResults) {
	fmt.Printf("Mean Latency vs Document Size\n")
	fmt.Printf("%s\n", strings.Repeat("-", 70))

	maxLatency := time.Duration(0)
	for _, p := range results.Points {
		if p.Latency.Mean > maxLatency {
			maxLatency = p.Latency.Mean
		}
	}
	if maxLatency == 0 {
		return
	}

	const graphWidth = 44
	for _, entries := range results.Config.EntryCounts {
		fmt.Printf("%d entries:\n", entries)
		for _, p := range results.Points {
			if p.EntryCount != entries {
				continue
			}
			bar := int(float64(p.Latency.Mean) / float64(maxLatency) * float64(graphWidth))
			if bar < 1 {
				bar = 1
			}
			fmt.Printf("  %-14s %s %s\n", p.Mode, strings.Repeat("█", bar), FormatDuration(p.Latency.Mean))
		}
	}
	fmt.Printf("\n")
}
