// Package pit models the 8254 programmable interval timer that drives IRQ 0.
//
// Two clocks are provided. Virtual derives time from the CPU: every poll
// point is one cycle and the timer line is raised every CyclesPerTick
// cycles, so runs are deterministic and an idle CPU skips straight to the
// next tick. Realtime raises the line from a wall-clock ticker goroutine at
// the programmed frequency.
package pit

import (
	"time"

	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kerror"
)

// Hz is the 8254 input clock frequency.
const Hz = 1193180

// Clock modes accepted by New.
const (
	ModeVirtual  = "virtual"
	ModeRealtime = "realtime"
)

// DefaultCyclesPerTick is the virtual clock's tick length in poll points.
const DefaultCyclesPerTick = 10000

// Clock is a timer chip feeding the interrupt controller.
type Clock interface {
	// Start begins raising the timer line.
	Start()
	// Stop stops raising the timer line. It is idempotent.
	Stop()
	// Mode returns ModeVirtual or ModeRealtime.
	Mode() string
}

// Counter returns the channel reload value that makes the 8254 interrupt
// freq times per second. Frequencies below 19 Hz do not fit the 16-bit
// counter and get the slowest rate the chip supports.
func Counter(freq int) int {
	switch {
	case freq < 19:
		return 65536
	case freq > Hz:
		return 2
	default:
		return (Hz + freq/2) / freq
	}
}

// Period returns the wall-clock interval between interrupts at freq.
func Period(freq int) time.Duration {
	return time.Duration(Counter(freq)) * time.Second / Hz
}

func validate(freq int) error {
	if freq <= 0 {
		return kerror.New(kerror.ErrCategoryConfig, kerror.CodeTimerFrequency, "timer frequency must be positive").
			WithDetail("got %d Hz", freq)
	}
	return nil
}

// New creates the clock for mode. cyclesPerTick only applies to the virtual
// clock and freq only to the real-time one.
func New(mode string, ctrl *interrupt.Controller, freq int, cyclesPerTick int64) (Clock, error) {
	switch mode {
	case ModeVirtual:
		v, err := NewVirtual(ctrl, cyclesPerTick)
		if err != nil {
			return nil, err
		}
		return v, nil
	case ModeRealtime:
		r, err := NewRealtime(ctrl, freq)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeInvalidConfig, "unknown clock mode").
			WithDetail("mode %q", mode).
			WithHint("use " + ModeVirtual + " or " + ModeRealtime)
	}
}
