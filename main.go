package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"kernsync/pkg/logging"
	"kernsync/pkg/machine"
	"kernsync/pkg/scenarios"
	"kernsync/pkg/ui"

	tea "github.com/charmbracelet/bubbletea"
)

type Configuration struct {
	Machine   machine.Config
	Scenarios []string
	List      bool
	TUI       bool
	Verbose   bool
	Splash    bool
	LogLevel  string
	LogFile   string
	LogFormat string
}

func main() {
	config := parseArguments()

	level, err := logging.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatalf("Invalid -log-level: %v", err)
	}
	if err := logging.Init(logging.Config{
		Level:      level,
		OutputPath: config.LogFile,
		Format:     config.LogFormat,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	if config.List {
		listScenarios()
		return
	}

	if err := config.Machine.Validate(); err != nil {
		log.Fatalf("Invalid machine configuration: %v", err)
	}

	if config.Splash {
		fmt.Println(ui.Splash())
	}

	if config.TUI {
		if err := startInteractiveMode(config.Machine); err != nil {
			log.Fatalf("Failed to start UI: %v", err)
		}
		return
	}

	code := runBatch(config)
	logging.Close()
	os.Exit(code)
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	config := Configuration{Machine: machine.DefaultConfig()}
	var run string

	flag.IntVar(&config.Machine.TimerFreq, "freq", config.Machine.TimerFreq, "Timer interrupts per second (19..1000)")
	flag.IntVar(&config.Machine.TimeSlice, "slice", config.Machine.TimeSlice, "Ticks a thread may run before it is preempted")
	flag.StringVar(&config.Machine.Clock, "clock", config.Machine.Clock, "Timer chip: virtual or realtime")
	flag.Int64Var(&config.Machine.CyclesPerTick, "cycles", config.Machine.CyclesPerTick, "Virtual clock cycles between timer interrupts")
	flag.BoolVar(&config.Machine.Calibrate, "calibrate", config.Machine.Calibrate, "Calibrate the busy-wait loop at boot")
	flag.BoolVar(&config.Machine.DetectDeadlock, "deadlock", config.Machine.DetectDeadlock, "Halt the machine when no thread can ever run again")
	flag.StringVar(&run, "run", "", "Comma separated scenarios to run (default all)")
	flag.BoolVar(&config.List, "list", false, "List the available scenarios and exit")
	flag.BoolVar(&config.TUI, "tui", false, "Start the interactive scenario runner")
	flag.BoolVar(&config.Verbose, "v", false, "Print every scenario transcript")
	flag.BoolVar(&config.Splash, "splash", true, "Show the start-up banner")
	flag.StringVar(&config.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flag.StringVar(&config.LogFile, "log-file", "", "Write logs to this file instead of stderr")
	flag.StringVar(&config.LogFormat, "log-format", "text", "Log format: text or json")

	flag.Parse()

	for _, name := range strings.Split(run, ",") {
		if name = strings.TrimSpace(name); name != "" {
			config.Scenarios = append(config.Scenarios, name)
		}
	}

	return config
}

func listScenarios() {
	for _, s := range scenarios.All() {
		fmt.Printf("%-26s %s\n", s.Name, s.Description)
	}
}

// runBatch runs the selected scenarios and returns the process exit code.
func runBatch(config Configuration) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := scenarios.RunAll(ctx, config.Machine, config.Scenarios)
	if results == nil && err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return 2
	}

	ui.Report(os.Stdout, results, config.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return 2
	}
	for _, r := range results {
		if !r.Passed {
			return 1
		}
	}
	return 0
}

// startInteractiveMode launches the Bubble Tea UI
func startInteractiveMode(cfg machine.Config) error {
	p := tea.NewProgram(
		ui.NewModel(cfg),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %v", err)
	}

	return nil
}
