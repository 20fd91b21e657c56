package timer

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"kernsync/pkg/devices/pit"
	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/kerror"
)

// boot runs fn as the main thread of a machine driven by a virtual clock.
func boot(t *testing.T, cyclesPerTick int64, fn func(u *sched.Uniprocessor, tm *Timer)) error {
	t.Helper()
	ctrl := interrupt.New()
	u, err := sched.New(ctrl, sched.DefaultConfig())
	if err != nil {
		t.Fatalf("sched.New: %v", err)
	}
	tm, err := New(u, DefaultConfig())
	if err != nil {
		t.Fatalf("timer.New: %v", err)
	}
	tm.Init()
	u.AddWakeSource(tm)

	clock, err := pit.NewVirtual(ctrl, cyclesPerTick)
	if err != nil {
		t.Fatalf("pit.NewVirtual: %v", err)
	}
	clock.Start()
	defer clock.Stop()

	return u.Run("main", thread.PriDefault, func() { fn(u, tm) })
}

func mustBoot(t *testing.T, fn func(u *sched.Uniprocessor, tm *Timer)) {
	t.Helper()
	if err := boot(t, 1000, fn); err != nil {
		t.Fatalf("machine halted with error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		freq    int
		wantErr bool
	}{
		{18, true},
		{MinFreq, false},
		{DefaultFreq, false},
		{MaxFreq, false},
		{MaxFreq + 1, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dHz", tt.freq), func(t *testing.T) {
			err := Config{Freq: tt.freq}.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !kerror.IsCode(err, kerror.CodeTimerFrequency) {
				t.Errorf("error code = %v, want %s", err, kerror.CodeTimerFrequency)
			}
		})
	}
}

func TestCalibrateOnVirtualClock(t *testing.T) {
	var lpt uint64
	var fits, overruns bool
	err := boot(t, 5000, func(u *sched.Uniprocessor, tm *Timer) {
		lpt = tm.Calibrate()
		fits = !tm.tooManyLoops(lpt)
		overruns = tm.tooManyLoops(lpt + lpt>>9)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if lpt != 4992 {
		t.Errorf("Calibrate() = %d, want 4992", lpt)
	}
	if !fits {
		t.Errorf("%d loops overrun a tick", lpt)
	}
	if !overruns {
		t.Errorf("%d loops still fit in a tick; calibration stopped short", lpt+lpt>>9)
	}
}

func TestSleepWakesAtExactTick(t *testing.T) {
	mustBoot(t, func(u *sched.Uniprocessor, tm *Timer) {
		tm.Sleep(100)
		if got := tm.Ticks(); got != 100 {
			t.Fatalf("Ticks() after first sleep = %d, want 100", got)
		}

		start := tm.Ticks()
		tm.Sleep(10)
		if got := tm.Ticks(); got != 110 {
			t.Errorf("Ticks() = %d, want 110", got)
		}
		if got := tm.Elapsed(start); got != 10 {
			t.Errorf("Elapsed = %d, want 10", got)
		}
		if tm.Sleeping() != 0 {
			t.Errorf("Sleeping() = %d, want 0", tm.Sleeping())
		}
	})
}

func TestSleepNonPositiveReturnsImmediately(t *testing.T) {
	mustBoot(t, func(u *sched.Uniprocessor, tm *Timer) {
		for _, n := range []int64{0, -1, -100} {
			start := tm.Ticks()
			tm.Sleep(n)
			if tm.Elapsed(start) != 0 {
				t.Errorf("Sleep(%d) took %d ticks", n, tm.Elapsed(start))
			}
		}
		if tm.Woken() != 0 {
			t.Errorf("Woken() = %d, want 0", tm.Woken())
		}
	})
}

func TestSleepersWakeInTickOrder(t *testing.T) {
	type wake struct {
		name string
		tick int64
	}
	var wakes []wake

	mustBoot(t, func(u *sched.Uniprocessor, tm *Timer) {
		done := 0
		for _, s := range []struct {
			name  string
			ticks int64
		}{{"thirty", 30}, {"ten", 10}, {"twenty", 20}, {"ten again", 10}} {
			u.Spawn(s.name, thread.PriDefault, func() {
				tm.Sleep(s.ticks)
				wakes = append(wakes, wake{s.name, tm.Ticks()})
				done++
			})
		}
		for done < 4 {
			tm.Sleep(5)
		}
	})

	want := []wake{{"ten", 10}, {"ten again", 10}, {"twenty", 20}, {"thirty", 30}}
	if !slices.Equal(wakes, want) {
		t.Errorf("wakes = %v, want %v", wakes, want)
	}
}

func TestRealTimeSleepConversions(t *testing.T) {
	mustBoot(t, func(u *sched.Uniprocessor, tm *Timer) {
		tm.Calibrate()

		start := tm.Ticks()
		tm.MSleep(50)
		if got := tm.Elapsed(start); got != 5 {
			t.Errorf("MSleep(50) at 100Hz took %d ticks, want 5", got)
		}

		start = tm.Ticks()
		tm.USleep(20000)
		if got := tm.Elapsed(start); got != 2 {
			t.Errorf("USleep(20000) took %d ticks, want 2", got)
		}

		start = tm.Ticks()
		tm.NSleep(1000)
		if got := tm.Elapsed(start); got > 1 {
			t.Errorf("NSleep(1000) busy-waited %d ticks", got)
		}
	})
}

func TestDelayWorksWithInterruptsOff(t *testing.T) {
	mustBoot(t, func(u *sched.Uniprocessor, tm *Timer) {
		tm.Calibrate()
		old := u.Interrupts().Disable()
		tm.UDelay(100)
		tm.NDelay(100)
		u.Interrupts().SetLevel(old)

		start := tm.Ticks()
		tm.MDelay(30)
		if got := tm.Elapsed(start); got < 2 || got > 4 {
			t.Errorf("MDelay(30) took %d ticks, want about 3", got)
		}
	})
}

func TestPrintStats(t *testing.T) {
	var out strings.Builder
	mustBoot(t, func(u *sched.Uniprocessor, tm *Timer) {
		tm.Sleep(7)
		tm.PrintStats(&out)
	})

	if out.String() != "Timer: 7 ticks\n" {
		t.Errorf("PrintStats = %q", out.String())
	}
}

func TestSleepContractViolations(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(u *sched.Uniprocessor, tm *Timer)
		wantCode string
	}{
		{
			name: "interrupts off",
			fn: func(u *sched.Uniprocessor, tm *Timer) {
				u.Interrupts().Disable()
				tm.Sleep(1)
			},
			wantCode: kerror.CodeInterruptsDisabled,
		},
		{
			name: "interrupt handler",
			fn: func(u *sched.Uniprocessor, tm *Timer) {
				ctrl := u.Interrupts()
				ctrl.RegisterExternal(interrupt.Timer+1, func(*interrupt.Frame) { tm.Sleep(1) }, "bad handler")
				ctrl.Raise(interrupt.Timer + 1)
				ctrl.Poll()
			},
			wantCode: kerror.CodeInterruptContext,
		},
		{
			name: "msleep with interrupts off",
			fn: func(u *sched.Uniprocessor, tm *Timer) {
				u.Interrupts().Disable()
				tm.MSleep(1)
			},
			wantCode: kerror.CodeInterruptsDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := boot(t, 1000, tt.fn)
			if !kerror.IsCode(err, tt.wantCode) {
				t.Fatalf("Run error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}
