// Package scenarios contains runnable behavioural checks of the kernel's
// alarm clock and priority scheduling. Each scenario boots its own machine,
// writes a transcript, and passes when the machine halts cleanly, no check
// failed, and the transcript matches the expected one when the scenario
// has a fixed expectation.
package scenarios

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"kernsync/pkg/devices/timer"
	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"
	"kernsync/pkg/machine"

	"golang.org/x/sync/errgroup"
)

// Scenario is one named behavioural check.
type Scenario struct {
	Name        string
	Description string

	run func(e *Env)
	// expect builds the expected transcript; nil means the scenario checks
	// itself with Env.Check.
	expect func() []string
}

// Env is what a scenario's main thread sees of its machine.
type Env struct {
	name     string
	m        *machine.Machine
	lines    []string
	failures []string
	log      *slog.Logger
}

// CPU returns the machine's scheduler.
func (e *Env) CPU() *sched.Uniprocessor {
	return e.m.CPU()
}

// Timer returns the machine's timer.
func (e *Env) Timer() *timer.Timer {
	return e.m.Timer()
}

// Msg appends a line to the transcript.
func (e *Env) Msg(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	e.lines = append(e.lines, line)
	e.log.Debug(line)
}

// Failf records a failed check.
func (e *Env) Failf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.failures = append(e.failures, msg)
	e.log.Warn("check failed", "reason", msg)
}

// Check records a failed check when cond is false.
func (e *Env) Check(cond bool, format string, args ...any) {
	if !cond {
		e.Failf(format, args...)
	}
}

// Result is the outcome of one scenario run.
type Result struct {
	Name     string
	Passed   bool
	Output   []string
	Expected []string
	Failures []string
	Err      error
	Stats    machine.Stats
	Duration time.Duration
}

// Summary returns a one-line description of why the scenario failed, or
// "ok".
func (r Result) Summary() string {
	switch {
	case r.Passed:
		return "ok"
	case r.Err != nil:
		return r.Err.Error()
	case len(r.Failures) > 0:
		return r.Failures[0]
	default:
		return "transcript mismatch"
	}
}

var registry = []Scenario{
	alarmSingle, alarmMultiple, alarmSimultaneous, alarmPriority, alarmZero, alarmNegative,
	priorityChange, priorityPreempt, priorityFIFO, prioritySema, priorityCondvar,
	donateOne, donateMultiple, donateNest, donateChain, donateSema, donateLower,
	semaSelfTest,
}

// All returns every scenario in suite order.
func All() []Scenario {
	return slices.Clone(registry)
}

// Names returns every scenario name in suite order.
func Names() []string {
	names := make([]string, len(registry))
	for i, s := range registry {
		names[i] = s.Name
	}
	return names
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Run boots a fresh machine with cfg and runs s on it.
func Run(ctx context.Context, cfg machine.Config, s Scenario) Result {
	res := Result{Name: s.Name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	m, err := machine.New(cfg)
	if err != nil {
		res.Err = err
		return res
	}

	env := &Env{
		name: s.Name,
		m:    m,
		log:  logging.WithComponent("scenario").With("scenario", s.Name),
	}

	started := time.Now()
	res.Err = m.Run(func() { s.run(env) })
	res.Duration = time.Since(started)

	res.Output = env.lines
	res.Failures = env.failures
	res.Stats = m.Stats()
	if s.expect != nil {
		res.Expected = s.expect()
	}

	res.Passed = res.Err == nil && len(res.Failures) == 0 &&
		(res.Expected == nil || slices.Equal(res.Output, res.Expected))
	env.log.Info("finished", "passed", res.Passed, "ticks", res.Stats.Ticks, "duration", res.Duration)
	return res
}

// RunAll runs the named scenarios, or all of them when names is empty, each
// on its own machine and in parallel. Results come back in the order asked.
func RunAll(ctx context.Context, cfg machine.Config, names []string) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = Names()
	}

	suite := make([]Scenario, len(names))
	for i, name := range names {
		s, ok := Lookup(name)
		if !ok {
			return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeInvalidConfig, "unknown scenario").
				WithDetail("scenario %q", name).
				WithHint("run with -list to see the available scenarios")
		}
		suite[i] = s
	}

	results := make([]Result, len(suite))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range suite {
		g.Go(func() error {
			results[i] = Run(gctx, cfg, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
