package scenarios

import (
	"context"
	"slices"
	"strings"
	"testing"

	"kernsync/pkg/kerror"
	"kernsync/pkg/machine"
)

func TestEveryScenarioPasses(t *testing.T) {
	cfg := machine.DefaultConfig()

	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			t.Parallel()
			res := Run(context.Background(), cfg, s)
			if res.Passed {
				return
			}

			t.Errorf("%s failed: %s", s.Name, res.Summary())
			for _, f := range res.Failures {
				t.Errorf("check: %s", f)
			}
			if res.Expected != nil && !slices.Equal(res.Output, res.Expected) {
				t.Errorf("output:\n%s\nexpected:\n%s",
					strings.Join(res.Output, "\n"), strings.Join(res.Expected, "\n"))
			}
		})
	}
}

func TestScenariosPassWithoutCalibration(t *testing.T) {
	cfg := machine.DefaultConfig()
	cfg.Calibrate = false
	cfg.CyclesPerTick = 500

	results, err := RunAll(context.Background(), cfg, []string{"alarm-simultaneous", "priority-donate-chain"})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s: %s", r.Name, r.Summary())
		}
	}
}

func TestRunAllKeepsRequestedOrder(t *testing.T) {
	names := []string{"sema-self-test", "alarm-zero", "priority-preempt"}
	results, err := RunAll(context.Background(), machine.DefaultConfig(), names)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if len(results) != len(names) {
		t.Fatalf("got %d results, want %d", len(results), len(names))
	}
	for i, r := range results {
		if r.Name != names[i] {
			t.Errorf("results[%d] = %s, want %s", i, r.Name, names[i])
		}
		if r.Stats.Ticks == 0 {
			t.Errorf("%s: no ticks recorded", r.Name)
		}
	}
}

func TestRunAllRejectsUnknownScenario(t *testing.T) {
	_, err := RunAll(context.Background(), machine.DefaultConfig(), []string{"alarm-single", "alarm-forever"})
	if !kerror.IsCode(err, kerror.CodeInvalidConfig) {
		t.Fatalf("RunAll error = %v, want %s", err, kerror.CodeInvalidConfig)
	}
}

func TestRunAllRejectsInvalidConfig(t *testing.T) {
	cfg := machine.DefaultConfig()
	cfg.TimerFreq = 2000
	if _, err := RunAll(context.Background(), cfg, nil); !kerror.IsCode(err, kerror.CodeTimerFrequency) {
		t.Fatalf("RunAll error = %v, want %s", err, kerror.CodeTimerFrequency)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, _ := Lookup("alarm-single")
	res := Run(ctx, machine.DefaultConfig(), s)
	if res.Passed || res.Err == nil {
		t.Fatalf("Run on a cancelled context = %+v", res)
	}
}

func TestRegistry(t *testing.T) {
	names := Names()
	if len(names) != 18 {
		t.Errorf("%d scenarios registered, want 18", len(names))
	}

	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate scenario %s", n)
		}
		seen[n] = true
		if _, ok := Lookup(n); !ok {
			t.Errorf("Lookup(%q) failed", n)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup found a scenario that does not exist")
	}
}

func TestFailedCheckFailsScenario(t *testing.T) {
	s := Scenario{
		Name: "always-fails",
		run: func(e *Env) {
			e.Msg("running")
			e.Check(false, "expected failure")
		},
	}

	res := Run(context.Background(), machine.DefaultConfig(), s)
	if res.Passed {
		t.Fatal("scenario with a failed check passed")
	}
	if res.Summary() != "expected failure" {
		t.Errorf("Summary() = %q", res.Summary())
	}
	if !slices.Equal(res.Output, []string{"running"}) {
		t.Errorf("Output = %v", res.Output)
	}
}

func TestTranscriptMismatchFailsScenario(t *testing.T) {
	s := Scenario{
		Name:   "mismatch",
		run:    func(e *Env) { e.Msg("actual") },
		expect: func() []string { return []string{"expected"} },
	}

	res := Run(context.Background(), machine.DefaultConfig(), s)
	if res.Passed || res.Summary() != "transcript mismatch" {
		t.Fatalf("result = %+v", res)
	}
}
