package timer

import (
	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kerror"
)

// Calibrate measures how many busy-wait loops fit in one tick and stores the
// result for the delay functions. Interrupts must be on.
//
// The search starts at 1024 loops and doubles while twice the count still
// fits in a tick, then refines the nine bits below the high bit, each probed on top of the
// bits already accepted so the result still fits in one tick.
func (t *Timer) Calibrate() uint64 {
	kerror.Assert(t.ctrl.Level() == interrupt.On, kerror.CodeInterruptsDisabled, "Calibrate", "timer",
		"calibration needs timer interrupts")

	lpt := uint64(1) << 10
	for !t.tooManyLoops(lpt << 1) {
		lpt <<= 1
		kerror.Assert(lpt != 0, kerror.CodeInvalidConfig, "Calibrate", "timer", "loop count overflow")
	}

	high := lpt
	for bit := high >> 1; bit != high>>10; bit >>= 1 {
		if !t.tooManyLoops(lpt | bit) {
			lpt |= bit
		}
	}

	t.loopsPerTick = lpt
	t.log.Info("calibrated", "loops_per_tick", lpt, "loops_per_second", lpt*uint64(t.freq))
	return lpt
}

// tooManyLoops reports whether loops iterations take longer than one tick.
func (t *Timer) tooManyLoops(loops uint64) bool {
	start := t.ticks
	for t.ticks == start {
		t.barrier()
	}

	start = t.ticks
	t.busyWait(int64(loops))

	t.barrier()
	return start != t.ticks
}

func (t *Timer) busyWait(loops int64) {
	for ; loops > 0; loops-- {
		t.barrier()
	}
}

// barrier is one CPU step: interrupts may be taken here.
func (t *Timer) barrier() {
	t.ctrl.Poll()
}
