package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"kernsync/pkg/machine"
	"kernsync/pkg/scenarios"

	"golang.org/x/sync/errgroup"
)

// BenchmarkResult captures wall-clock statistics for repeated boots of one
// scenario.
type BenchmarkResult struct {
	Scenario        string        `json:"scenario"`
	Iterations      int           `json:"iterations"`
	TotalDuration   time.Duration `json:"total_duration_ns"`
	AvgDuration     time.Duration `json:"avg_duration_ns"`
	MinDuration     time.Duration `json:"min_duration_ns"`
	MaxDuration     time.Duration `json:"max_duration_ns"`
	MedianDuration  time.Duration `json:"median_duration_ns"`
	P95Duration     time.Duration `json:"p95_duration_ns"`
	P99Duration     time.Duration `json:"p99_duration_ns"`
	BootsPerSecond  float64       `json:"boots_per_second"`
	ConcurrentBoots int           `json:"concurrent_boots"`
	AvgSwitches     float64       `json:"avg_context_switches"`
	AvgTicks        float64       `json:"avg_ticks"`
	SuccessCount    int           `json:"success_count"`
	ErrorCount      int           `json:"error_count"`
	ErrorSamples    []string      `json:"error_samples"`
	Timestamp       time.Time     `json:"timestamp"`
}

// BenchmarkReport aggregates every benchmark run.
type BenchmarkReport struct {
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	TotalDuration time.Duration     `json:"total_duration"`
	Results       []BenchmarkResult `json:"results"`
	Machine       machine.Config    `json:"machine"`
}

// main boots every scenario repeatedly, first one machine at a time and then
// several in parallel, and writes a JSON report.
//
// Environment variables:
//   - BENCHMARK_OUTPUT: Directory for output reports (default: ./benchmark-results)
//   - BENCHMARK_ITERATIONS: Boots per scenario (default: 200)
//   - BENCHMARK_CONCURRENT_BOOTS: Machines running at once (default: 8)
func main() {
	outputDir := filepath.Clean(os.Getenv("BENCHMARK_OUTPUT"))
	if outputDir == "." {
		outputDir = "./benchmark-results"
	}

	iterations := 200
	if iter := os.Getenv("BENCHMARK_ITERATIONS"); iter != "" {
		_, _ = fmt.Sscanf(iter, "%d", &iterations)
	}

	concurrentBoots := 8
	if conc := os.Getenv("BENCHMARK_CONCURRENT_BOOTS"); conc != "" {
		_, _ = fmt.Sscanf(conc, "%d", &concurrentBoots)
	}

	iterations = max(1, iterations)
	concurrentBoots = max(1, concurrentBoots)

	_ = os.MkdirAll(outputDir, 0o750) // #nosec G703

	cfg := machine.DefaultConfig()
	// Calibration dominates short scenarios; measure the primitives instead.
	cfg.Calibrate = false

	log.Printf("Starting benchmark suite...")
	log.Printf("Iterations: %d, Concurrent Boots: %d", iterations, concurrentBoots)

	report := BenchmarkReport{
		StartTime: time.Now(),
		Machine:   cfg,
	}

	for _, s := range scenarios.All() {
		log.Printf("%s", "\n"+strings.Repeat("=", 80))
		log.Printf("SCENARIO: %s", s.Name)
		log.Printf("%s", strings.Repeat("=", 80))

		log.Printf("→ Running sequential test (%d iterations)...", iterations)
		seq := runBenchmark(cfg, s, iterations, 1)
		report.Results = append(report.Results, seq)
		printBenchmarkResult(seq)

		log.Printf("")
		log.Printf("→ Running concurrent test (%d parallel machines, %d iterations)...", concurrentBoots, iterations)
		conc := runBenchmark(cfg, s, iterations, concurrentBoots)
		report.Results = append(report.Results, conc)
		printBenchmarkResult(conc)
	}

	report.EndTime = time.Now()
	report.TotalDuration = report.EndTime.Sub(report.StartTime)

	timestamp := time.Now().Format("20060102_150405")
	jsonFile := fmt.Sprintf("%s/benchmark_report_%s.json", outputDir, timestamp)

	log.Printf("%s", "\n"+strings.Repeat("=", 80))
	log.Printf("BENCHMARK SUITE COMPLETE")
	log.Printf("    Total Duration:     %s", formatDuration(report.TotalDuration))
	log.Printf("    Tests Run:          %d", len(report.Results))

	saveJSONReport(report, jsonFile)
}

// runBenchmark boots s iterations times with at most concurrent machines
// alive at once.
func runBenchmark(cfg machine.Config, s scenarios.Scenario, iterations, concurrent int) BenchmarkResult {
	durations := make([]time.Duration, 0, iterations)
	var mu sync.Mutex
	var switches, ticks int64

	successCount := 0
	errorCount := 0
	errorSamples := make([]string, 0, 5)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(concurrent)
	for range iterations {
		g.Go(func() error {
			r := scenarios.Run(context.Background(), cfg, s)

			mu.Lock()
			defer mu.Unlock()
			durations = append(durations, r.Duration)
			switches += r.Stats.Switches
			ticks += r.Stats.Ticks
			if r.Passed {
				successCount++
			} else {
				errorCount++
				if len(errorSamples) < 5 {
					errorSamples = append(errorSamples, r.Summary())
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	totalDuration := time.Since(startTime)

	slices.Sort(durations)

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	n := len(durations)

	return BenchmarkResult{
		Scenario:        s.Name,
		Iterations:      iterations,
		TotalDuration:   totalDuration,
		AvgDuration:     sum / time.Duration(n),
		MinDuration:     durations[0],
		MaxDuration:     durations[n-1],
		MedianDuration:  durations[n/2],
		P95Duration:     durations[int(float64(n)*0.95)],
		P99Duration:     durations[int(float64(n)*0.99)],
		BootsPerSecond:  float64(iterations) / totalDuration.Seconds(),
		ConcurrentBoots: concurrent,
		AvgSwitches:     float64(switches) / float64(n),
		AvgTicks:        float64(ticks) / float64(n),
		SuccessCount:    successCount,
		ErrorCount:      errorCount,
		ErrorSamples:    errorSamples,
		Timestamp:       time.Now(),
	}
}

// formatDuration formats a duration in a human-readable way with appropriate units.
// Examples: 1.23ms, 456.78µs, 12.34s
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func printBenchmarkResult(result BenchmarkResult) {
	log.Printf("  ┌─ Results")
	log.Printf("  │  Total Time:        %s", formatDuration(result.TotalDuration))
	log.Printf("  │  Avg per Boot:      %s", formatDuration(result.AvgDuration))
	log.Printf("  │  Min / Max:         %s / %s", formatDuration(result.MinDuration), formatDuration(result.MaxDuration))
	log.Printf("  │  Median (P50):      %s", formatDuration(result.MedianDuration))
	log.Printf("  │  P95 / P99:         %s / %s", formatDuration(result.P95Duration), formatDuration(result.P99Duration))
	log.Printf("  │  Throughput:        %.0f boots/sec", result.BootsPerSecond)
	log.Printf("  │  Avg Switches:      %.1f", result.AvgSwitches)
	log.Printf("  │  Passed:            %d/%d", result.SuccessCount, result.Iterations)

	for _, msg := range result.ErrorSamples {
		log.Printf("  │  ⚠ %s", strings.NewReplacer("\n", " ", "\r", " ").Replace(msg)) // #nosec G706
	}

	log.Printf("  └─")
}

func saveJSONReport(report BenchmarkReport, filename string) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("Error marshaling report: %v", err)
		return
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil { // #nosec G703
		log.Printf("Error writing JSON report: %v", err)
		return
	}

	log.Printf("JSON report saved: %s", filename) // #nosec G706
}
