// Package machine assembles a bootable simulated computer: an interrupt
// controller, a timer chip, the uniprocessor scheduler and the timer
// driver.
package machine

import (
	"fmt"
	"log/slog"

	"kernsync/pkg/devices/pit"
	"kernsync/pkg/devices/timer"
	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"
)

// Config selects the hardware and scheduler parameters.
type Config struct {
	TimerFreq      int
	TimeSlice      int
	Clock          string
	CyclesPerTick  int64
	DetectDeadlock bool
	// Calibrate runs the busy-wait calibration before main starts.
	Calibrate bool
}

// DefaultConfig returns a deterministic 100 Hz machine.
func DefaultConfig() Config {
	return Config{
		TimerFreq:      timer.DefaultFreq,
		TimeSlice:      sched.DefaultTimeSlice,
		Clock:          pit.ModeVirtual,
		CyclesPerTick:  pit.DefaultCyclesPerTick,
		DetectDeadlock: true,
		Calibrate:      true,
	}
}

// Validate checks every part of the configuration.
func (c Config) Validate() error {
	if err := (timer.Config{Freq: c.TimerFreq}).Validate(); err != nil {
		return err
	}
	if err := (sched.Config{TimeSlice: c.TimeSlice}).Validate(); err != nil {
		return err
	}
	switch c.Clock {
	case pit.ModeVirtual:
		if c.CyclesPerTick <= 0 {
			return kerror.New(kerror.ErrCategoryConfig, kerror.CodeInvalidConfig, "cycles per tick must be positive").
				WithDetail("got %d", c.CyclesPerTick)
		}
	case pit.ModeRealtime:
	default:
		return kerror.New(kerror.ErrCategoryConfig, kerror.CodeInvalidConfig, "unknown clock mode").
			WithDetail("mode %q", c.Clock).
			WithHint(fmt.Sprintf("use %s or %s", pit.ModeVirtual, pit.ModeRealtime))
	}
	return nil
}

// Machine is one simulated computer. It boots once.
type Machine struct {
	cfg   Config
	ctrl  *interrupt.Controller
	clock pit.Clock
	cpu   *sched.Uniprocessor
	timer *timer.Timer

	log *slog.Logger
}

// New wires the devices together. Nothing runs until Run.
func New(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctrl := interrupt.New()
	cpu, err := sched.New(ctrl, sched.Config{TimeSlice: cfg.TimeSlice, DetectDeadlock: cfg.DetectDeadlock})
	if err != nil {
		return nil, kerror.Wrap(err, kerror.CodeInvalidConfig, "New", "machine")
	}

	tm, err := timer.New(cpu, timer.Config{Freq: cfg.TimerFreq})
	if err != nil {
		return nil, kerror.Wrap(err, kerror.CodeInvalidConfig, "New", "machine")
	}
	tm.Init()
	cpu.AddWakeSource(tm)

	clock, err := pit.New(cfg.Clock, ctrl, cfg.TimerFreq, cfg.CyclesPerTick)
	if err != nil {
		return nil, kerror.Wrap(err, kerror.CodeInvalidConfig, "New", "machine")
	}

	return &Machine{
		cfg:   cfg,
		ctrl:  ctrl,
		clock: clock,
		cpu:   cpu,
		timer: tm,
		log:   logging.WithComponent("machine"),
	}, nil
}

// Run boots the machine with fn as the main thread at the default priority
// and returns when the machine halts.
func (m *Machine) Run(fn func()) error {
	return m.RunAs("main", thread.PriDefault, fn)
}

// RunAs is Run with an explicit main thread name and priority.
func (m *Machine) RunAs(name string, priority int, fn func()) error {
	m.clock.Start()
	defer m.clock.Stop()

	m.log.Debug("booting", "clock", m.clock.Mode(), "freq", m.cfg.TimerFreq, "time_slice", m.cfg.TimeSlice)
	err := m.cpu.Run(name, priority, func() {
		if m.cfg.Calibrate {
			m.timer.Calibrate()
		}
		fn()
	})
	if err != nil {
		return err
	}

	m.log.Debug("halted", "ticks", m.timer.Ticks(), "switches", m.cpu.Stats().Switches)
	return nil
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Interrupts returns the interrupt controller.
func (m *Machine) Interrupts() *interrupt.Controller {
	return m.ctrl
}

// CPU returns the scheduler.
func (m *Machine) CPU() *sched.Uniprocessor {
	return m.cpu
}

// Timer returns the timer driver.
func (m *Machine) Timer() *timer.Timer {
	return m.timer
}

// Clock returns the timer chip.
func (m *Machine) Clock() pit.Clock {
	return m.clock
}

// Stats summarizes a finished run.
type Stats struct {
	Ticks       int64
	IdleTicks   int64
	KernelTicks int64
	Switches    int64
	Spawned     int64
	TimerIRQs   uint64
	Woken       int64
}

// Stats returns the counters of the machine. Call it after Run returns.
func (m *Machine) Stats() Stats {
	s := m.cpu.Stats()
	return Stats{
		Ticks:       m.timer.Ticks(),
		IdleTicks:   s.IdleTicks,
		KernelTicks: s.KernelTicks,
		Switches:    s.Switches,
		Spawned:     s.Spawned,
		TimerIRQs:   m.ctrl.Count(interrupt.Timer),
		Woken:       m.timer.Woken(),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("Timer: %d ticks\nThread: %d idle ticks, %d kernel ticks\nScheduler: %d switches, %d threads spawned",
		s.Ticks, s.IdleTicks, s.KernelTicks, s.Switches, s.Spawned)
}
