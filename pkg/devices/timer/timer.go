// Package timer implements the kernel's tick counter and alarm clock on top
// of the 8254 timer interrupt: tick-granularity sleeps that block the caller
// instead of spinning, sub-tick busy-wait delays calibrated at boot, and the
// per-tick hand-off to the scheduler.
package timer

import (
	"fmt"
	"io"
	"log/slog"

	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/kernel/waitq"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"
)

// Frequency limits. The 8254 cannot interrupt slower than 19 Hz.
const (
	MinFreq     = 19
	MaxFreq     = 1000
	DefaultFreq = 100
)

// Scheduler is what the timer needs from the thread subsystem.
type Scheduler interface {
	sched.Scheduler
	sched.Ticker
}

// Config configures a Timer.
type Config struct {
	// Freq is the number of timer interrupts per second.
	Freq int
}

// DefaultConfig returns a 100 Hz configuration.
func DefaultConfig() Config {
	return Config{Freq: DefaultFreq}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Freq < MinFreq || c.Freq > MaxFreq {
		return kerror.New(kerror.ErrCategoryConfig, kerror.CodeTimerFrequency, "timer frequency out of range").
			WithDetail("got %d Hz, want %d..%d", c.Freq, MinFreq, MaxFreq).
			WithHint("the 8254 needs at least 19 Hz")
	}
	return nil
}

// Timer counts ticks and keeps the set of sleeping threads.
type Timer struct {
	sched Scheduler
	ctrl  *interrupt.Controller
	freq  int

	ticks        int64
	loopsPerTick uint64
	sleepers     *waitq.Queue[*thread.Thread]
	woken        int64

	log *slog.Logger
}

// New creates a timer. Init must be called to hook it to IRQ 0.
func New(sc Scheduler, cfg Config) (*Timer, error) {
	if sc == nil {
		return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeNilHandle, "nil scheduler")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Timer{
		sched:    sc,
		ctrl:     sc.Interrupts(),
		freq:     cfg.Freq,
		sleepers: waitq.New(thread.ByWakeTick),
		log:      logging.WithComponent("timer"),
	}, nil
}

// Init registers the timer interrupt handler on IRQ 0.
func (t *Timer) Init() {
	t.ctrl.RegisterExternal(interrupt.Timer, t.interrupt, "8254 Timer")
}

// Freq returns the timer frequency in Hz.
func (t *Timer) Freq() int {
	return t.freq
}

// Ticks returns the number of timer ticks since boot.
func (t *Timer) Ticks() int64 {
	old := t.ctrl.Disable()
	n := t.ticks
	t.ctrl.SetLevel(old)
	return n
}

// Elapsed returns the number of ticks since then, a value once returned by
// Ticks.
func (t *Timer) Elapsed(then int64) int64 {
	return t.Ticks() - then
}

// Sleeping returns the number of threads waiting for a wake tick.
func (t *Timer) Sleeping() int {
	return t.sleepers.Len()
}

// LoopsPerTick returns the calibrated busy-wait loop count per tick.
func (t *Timer) LoopsPerTick() uint64 {
	return t.loopsPerTick
}

// Woken returns the number of sleepers woken so far.
func (t *Timer) Woken() int64 {
	return t.woken
}

// Sleep blocks the running thread for about n ticks. Interrupts must be on.
func (t *Timer) Sleep(n int64) {
	kerror.Assert(!t.ctrl.InContext(), kerror.CodeInterruptContext, "Sleep", "timer",
		"cannot sleep inside an interrupt handler")
	kerror.Assert(t.ctrl.Level() == interrupt.On, kerror.CodeInterruptsDisabled, "Sleep", "timer",
		"interrupts must be on to sleep")
	if n <= 0 {
		return
	}

	start := t.Ticks()
	old := t.ctrl.Disable()

	cur := t.sched.Current()
	cur.WakeTick = start + n
	t.sleepers.Insert(cur)
	cur.Log().Debug("sleeping", "ticks", n, "wake_tick", cur.WakeTick)
	t.sched.Block()

	t.ctrl.SetLevel(old)
}

// MSleep sleeps for about ms milliseconds. Interrupts must be on.
func (t *Timer) MSleep(ms int64) {
	t.realTimeSleep(ms, 1000)
}

// USleep sleeps for about us microseconds. Interrupts must be on.
func (t *Timer) USleep(us int64) {
	t.realTimeSleep(us, 1000*1000)
}

// NSleep sleeps for about ns nanoseconds. Interrupts must be on.
func (t *Timer) NSleep(ns int64) {
	t.realTimeSleep(ns, 1000*1000*1000)
}

// MDelay busy-waits for about ms milliseconds. Interrupts need not be on,
// but ticks are lost if they stay off for a tick or longer.
func (t *Timer) MDelay(ms int64) {
	t.realTimeDelay(ms, 1000)
}

// UDelay busy-waits for about us microseconds.
func (t *Timer) UDelay(us int64) {
	t.realTimeDelay(us, 1000*1000)
}

// NDelay busy-waits for about ns nanoseconds.
func (t *Timer) NDelay(ns int64) {
	t.realTimeDelay(ns, 1000*1000*1000)
}

// PrintStats writes the tick count to w.
func (t *Timer) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Timer: %d ticks\n", t.Ticks())
}

func (t *Timer) interrupt(f *interrupt.Frame) {
	t.ticks++
	t.wake(f)
	t.sched.Tick()
}

// wake unblocks every sleeper that is due. The sleep set is ordered by wake
// tick, so only its front is examined.
func (t *Timer) wake(f *interrupt.Frame) {
	for {
		th, ok := t.sleepers.Front()
		if !ok || th.WakeTick > t.ticks {
			return
		}
		t.sleepers.PopFront()
		t.sched.Unblock(th)
		t.woken++
		logging.WithTick(t.ticks).Debug("woken", "thread_id", int64(th.ID), "thread", th.Name)

		if th.Priority > t.sched.Current().Priority {
			f.YieldOnReturn()
		}
	}
}

func (t *Timer) realTimeSleep(num, denom int64) {
	ticks := num * int64(t.freq) / denom

	kerror.Assert(t.ctrl.Level() == interrupt.On, kerror.CodeInterruptsDisabled, "realTimeSleep", "timer",
		"interrupts must be on to sleep")
	if ticks > 0 {
		t.Sleep(ticks)
		return
	}
	t.realTimeDelay(num, denom)
}

func (t *Timer) realTimeDelay(num, denom int64) {
	kerror.Assert(denom%1000 == 0, kerror.CodeInvalidConfig, "realTimeDelay", "timer",
		"denominator must be a multiple of 1000")
	t.busyWait(int64(t.loopsPerTick) * num / 1000 * int64(t.freq) / (denom / 1000))
}
