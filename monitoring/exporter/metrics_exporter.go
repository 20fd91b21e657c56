package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"kernsync/pkg/logging"
	"kernsync/pkg/machine"
	"kernsync/pkg/scenarios"
)

type MetricsCollector struct {
	cfg          machine.Config
	runs         int64
	failures     map[string]int64
	lastDuration map[string]time.Duration
	ticks        int64
	switches     int64
	idleTicks    int64
	lastRunTime  time.Time
	mu           sync.RWMutex
}

func NewMetricsCollector(cfg machine.Config) *MetricsCollector {
	return &MetricsCollector{
		cfg:          cfg,
		failures:     make(map[string]int64),
		lastDuration: make(map[string]time.Duration),
		lastRunTime:  time.Now(),
	}
}

// RecordRun folds one pass over the suite into the counters.
func (mc *MetricsCollector) RecordRun(results []scenarios.Result) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.runs++
	mc.lastRunTime = time.Now()
	for _, r := range results {
		mc.lastDuration[r.Name] = r.Duration
		mc.ticks += r.Stats.Ticks
		mc.switches += r.Stats.Switches
		mc.idleTicks += r.Stats.IdleTicks
		if !r.Passed {
			mc.failures[r.Name]++
		}
	}
}

func (mc *MetricsCollector) GetMetrics() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	metrics := fmt.Sprintf(`# HELP kernsync_suite_runs_total Passes over the scenario suite
# TYPE kernsync_suite_runs_total counter
kernsync_suite_runs_total %d

# HELP kernsync_ticks_total Timer ticks across every simulated machine
# TYPE kernsync_ticks_total counter
kernsync_ticks_total %d

# HELP kernsync_idle_ticks_total Ticks spent in the idle thread
# TYPE kernsync_idle_ticks_total counter
kernsync_idle_ticks_total %d

# HELP kernsync_context_switches_total Context switches across every simulated machine
# TYPE kernsync_context_switches_total counter
kernsync_context_switches_total %d

# HELP kernsync_up Exporter up status (1 = up, 0 = down)
# TYPE kernsync_up gauge
kernsync_up 1

# HELP kernsync_last_run_timestamp_seconds Unix timestamp of the last suite pass
# TYPE kernsync_last_run_timestamp_seconds gauge
kernsync_last_run_timestamp_seconds %d
`,
		mc.runs,
		mc.ticks,
		mc.idleTicks,
		mc.switches,
		mc.lastRunTime.Unix(),
	)

	metrics += `
# HELP kernsync_scenario_failures_total Failed runs per scenario
# TYPE kernsync_scenario_failures_total counter
`
	for _, name := range scenarios.Names() {
		metrics += fmt.Sprintf("kernsync_scenario_failures_total{scenario=%q} %d\n", name, mc.failures[name])
	}

	metrics += `
# HELP kernsync_scenario_duration_microseconds Wall time of the last run per scenario
# TYPE kernsync_scenario_duration_microseconds gauge
`
	for _, name := range scenarios.Names() {
		if d, ok := mc.lastDuration[name]; ok {
			metrics += fmt.Sprintf("kernsync_scenario_duration_microseconds{scenario=%q} %d\n", name, d.Microseconds())
		}
	}

	return metrics
}

// StartSoak reruns the whole suite every interval until ctx ends.
func (mc *MetricsCollector) StartSoak(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			results, err := scenarios.RunAll(ctx, mc.cfg, nil)
			if err != nil {
				logging.WithError(err).Warn("suite run failed")
			}
			mc.RecordRun(results)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func main() {
	logging.InitDefault()
	defer logging.Close()

	cfg := machine.DefaultConfig()
	if clock := os.Getenv("KERNSYNC_CLOCK"); clock != "" {
		cfg.Clock = clock
	}
	if freq := os.Getenv("KERNSYNC_FREQ"); freq != "" {
		n, err := strconv.Atoi(freq)
		if err != nil {
			log.Fatalf("Invalid KERNSYNC_FREQ: %v", err)
		}
		cfg.TimerFreq = n
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid machine configuration: %v", err)
	}

	interval := 30 * time.Second
	if s := os.Getenv("SOAK_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			log.Fatalf("Invalid SOAK_INTERVAL: %v", err)
		}
		interval = d
	}

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "8080"
	}

	log.Printf("Starting kernsync soak exporter...")
	log.Printf("Clock: %s, Frequency: %d Hz, Interval: %v", cfg.Clock, cfg.TimerFreq, interval)
	log.Printf("Metrics Port: %s", metricsPort) // #nosec G706

	collector := NewMetricsCollector(cfg)
	collector.StartSoak(context.Background(), interval)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, collector.GetMetrics())
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	srv := &http.Server{
		Addr:         ":" + metricsPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Metrics available at http://localhost:%s/metrics", metricsPort) // #nosec G706
	log.Fatal(srv.ListenAndServe())
}
