package benchmark

import (
	"fmt"
	"time"

	"github.com/mschirtzinger/savewatch/internal/extract"
	"github.com/mschirtzinger/savewatch/internal/savetext"
)

// RunBenchmark generates one synthetic save and measures config.Mode over
// it for config.Iterations runs.
func RunBenchmark(config BenchmarkConfig) (*BenchmarkResult, error) {
	run, err := runnerFor(config.Mode)
	if err != nil {
		return nil, err
	}

	doc := Generate(config)

	memBefore := GetMemoryStats()
	durations := make([]time.Duration, 0, config.Iterations)
	errorCount := 0
	nodes := 0

	started := time.Now()
	for i := 0; i < config.Iterations; i++ {
		runStart := time.Now()
		n, err := run(doc)
		took := time.Since(runStart)
		if err != nil {
			errorCount++
			continue
		}
		nodes = n
		durations = append(durations, took)
	}
	total := time.Since(started)
	memAfter := GetMemoryStats()

	result := &BenchmarkResult{
		Config:        config,
		Latency:       ComputeStats(durations),
		Resources:     CompareMemoryStats(memBefore, memAfter),
		InputBytes:    int64(len(doc)),
		NodesVisited:  nodes,
		TotalDuration: total,
		ErrorCount:    errorCount,
		Success:       errorCount == 0,
	}
	result.Throughput.TotalRuns = len(durations)
	if config.Iterations > 0 {
		result.ErrorRate = float64(errorCount) / float64(config.Iterations)
	}
	if total > 0 {
		result.Throughput.RunsPerSecond = float64(len(durations)) / total.Seconds()
		result.Throughput.MBPerSecond = float64(int64(len(durations))*result.InputBytes) /
			total.Seconds() / (1024 * 1024)
	}
	return result, nil
}

func runnerFor(mode string) (func([]byte) (int, error), error) {
	switch mode {
	case ModeStrict:
		return runStrict, nil
	case ModeLoose:
		return runLoose, nil
	case ModeSpan:
		return runSpan, nil
	default:
		return nil, fmt.Errorf("unknown benchmark mode %q", mode)
	}
}

// runStrict pays for everything: whole-document parse plus conversion.
func runStrict(doc []byte) (int, error) {
	f, err := extract.FullExtract(doc, extract.Options{})
	if err != nil {
		return 0, err
	}
	return f.TotalNodes, nil
}

// runLoose runs the bounded pattern scan the best-effort status path uses.
func runLoose(doc []byte) (int, error) {
	s := extract.StatusLoose(doc, extract.Options{})
	n := len(s.Fields)
	if s.Date != "" {
		n++
	}
	if s.Player != "" {
		n++
	}
	return n, nil
}

// runSpan walks the document's top-level children by span only, which is
// the skip machinery the status tier rides to its section.
func runSpan(doc []byte) (int, error) {
	it := savetext.IterateRoot(doc)
	n := 0
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		n++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return n, nil
}
