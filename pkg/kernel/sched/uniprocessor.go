package sched

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/kernel/waitq"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"

	"go.uber.org/atomic"
)

// DefaultTimeSlice is the number of ticks a thread runs before preemption.
const DefaultTimeSlice = 4

// Config configures a Uniprocessor.
type Config struct {
	// TimeSlice is the quantum in timer ticks.
	TimeSlice int
	// DetectDeadlock halts the machine when nothing is ready and no
	// WakeSource has sleepers. Disable it when handlers other than the
	// timer wake threads.
	DetectDeadlock bool
}

// DefaultConfig returns the configuration used by the command-line tool.
func DefaultConfig() Config {
	return Config{
		TimeSlice:      DefaultTimeSlice,
		DetectDeadlock: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TimeSlice <= 0 {
		return kerror.New(kerror.ErrCategoryConfig, kerror.CodeInvalidConfig, "time slice must be positive").
			WithDetail("got %d ticks", c.TimeSlice)
	}
	return nil
}

// Stats are scheduler counters.
type Stats struct {
	IdleTicks   int64
	KernelTicks int64
	Switches    int64
	Spawned     int64
}

type task struct {
	run chan struct{}
}

// Uniprocessor is a simulated single-CPU scheduler with strict priority
// scheduling.
type Uniprocessor struct {
	ctrl *interrupt.Controller
	cfg  Config

	nextID  thread.ID
	ready   *waitq.Queue[*thread.Thread]
	tasks   map[*thread.Thread]*task
	all     []*thread.Thread
	current *thread.Thread
	idle    *thread.Thread
	main    *thread.Thread

	sliceTicks  int
	stats       Stats
	wakeSources []WakeSource

	booted bool
	halted atomic.Bool
	stop   chan struct{}
	done   chan error

	log *slog.Logger
}

// New creates a scheduler driving ctrl's CPU.
func New(ctrl *interrupt.Controller, cfg Config) (*Uniprocessor, error) {
	if ctrl == nil {
		return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeNilHandle, "nil interrupt controller")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Uniprocessor{
		ctrl:  ctrl,
		cfg:   cfg,
		ready: waitq.NewRevalidating(thread.ByPriority),
		tasks: make(map[*thread.Thread]*task),
		stop:  make(chan struct{}),
		done:  make(chan error, 1),
		log:   logging.WithComponent("sched"),
	}, nil
}

// AddWakeSource registers a source consulted by deadlock detection.
func (u *Uniprocessor) AddWakeSource(ws WakeSource) {
	u.wakeSources = append(u.wakeSources, ws)
}

// Run boots the machine with a main thread running fn and blocks the calling
// goroutine until the machine halts. It can be called once.
func (u *Uniprocessor) Run(name string, priority int, fn func()) error {
	if u.booted {
		return kerror.New(kerror.ErrCategoryContract, kerror.CodeNotBooted, "machine already booted")
	}
	if !thread.ValidPriority(priority) {
		return kerror.New(kerror.ErrCategoryConfig, kerror.CodeBadPriority, "invalid main thread priority").
			WithDetail("priority %d", priority)
	}
	u.booted = true
	u.ctrl.SetYield(u.Yield)

	u.idle = u.create("idle", thread.PriMin, u.idleLoop)
	u.main = u.create(name, priority, fn)
	u.main.Status = thread.Running
	u.current = u.main

	u.log.Info("boot", "main", name, "priority", priority, "time_slice", u.cfg.TimeSlice)
	u.tasks[u.main].run <- struct{}{}

	err := <-u.done
	if err != nil {
		u.log.Error("machine halted", "error", err)
	} else {
		u.log.Info("machine halted", "switches", u.stats.Switches)
	}
	return err
}

// Spawn creates a ready thread running fn and yields to it if it outranks
// the caller.
func (u *Uniprocessor) Spawn(name string, priority int, fn func()) *thread.Thread {
	kerror.Assert(u.booted, kerror.CodeNotBooted, "Spawn", "sched", "threads are spawned by running threads")
	kerror.Assert(fn != nil, kerror.CodeNilHandle, "Spawn", "sched", "nil thread function")

	old := u.ctrl.Disable()
	t := u.create(name, priority, fn)
	u.stats.Spawned++
	u.ctrl.SetLevel(old)

	u.Unblock(t)
	t.Log().Debug("spawned", "priority", priority)

	if !u.ctrl.InContext() && t.Priority > u.current.Priority {
		u.Yield()
	}
	return t
}

// Current returns the running thread.
func (u *Uniprocessor) Current() *thread.Thread {
	return u.current
}

// Idle returns the idle thread.
func (u *Uniprocessor) Idle() *thread.Thread {
	return u.idle
}

// Interrupts returns the CPU's interrupt controller.
func (u *Uniprocessor) Interrupts() *interrupt.Controller {
	return u.ctrl
}

// Block deschedules the running thread. Interrupts must be off.
func (u *Uniprocessor) Block() {
	kerror.Assert(!u.ctrl.InContext(), kerror.CodeInterruptContext, "Block", "sched",
		"cannot block inside an interrupt handler")
	kerror.Assert(u.ctrl.Level() == interrupt.Off, kerror.CodeInterruptsEnabled, "Block", "sched",
		"interrupts must be off to block")

	u.current.Status = thread.Blocked
	u.schedule()
}

// Unblock moves a blocked thread to the ready queue without preempting the
// caller.
func (u *Uniprocessor) Unblock(t *thread.Thread) {
	kerror.Assert(t != nil, kerror.CodeNilHandle, "Unblock", "sched", "nil thread")

	old := u.ctrl.Disable()
	defer u.ctrl.SetLevel(old)

	kerror.Assert(t.Status == thread.Blocked, kerror.CodeBadThreadState, "Unblock", "sched",
		fmt.Sprintf("%s is %s, not blocked", t, t.Status))
	u.ready.Insert(t)
	t.Status = thread.Ready
}

// Yield puts the running thread back on the ready queue and schedules.
func (u *Uniprocessor) Yield() {
	kerror.Assert(!u.ctrl.InContext(), kerror.CodeInterruptContext, "Yield", "sched",
		"cannot yield inside an interrupt handler")

	old := u.ctrl.Disable()
	defer u.ctrl.SetLevel(old)

	cur := u.current
	if cur != u.idle {
		u.ready.Insert(cur)
	}
	cur.Status = thread.Ready
	u.schedule()
}

// SetPriority sets the running thread's base priority. A donated effective
// priority is kept when it is higher than the new base. The thread yields
// if it no longer has the highest priority.
func (u *Uniprocessor) SetPriority(p int) {
	kerror.Assert(thread.ValidPriority(p), kerror.CodeBadPriority, "SetPriority", "sched",
		fmt.Sprintf("priority %d outside [%d, %d]", p, thread.PriMin, thread.PriMax))

	old := u.ctrl.Disable()
	cur := u.current
	cur.BasePriority = p
	if !cur.Donated || p > cur.Priority {
		cur.Priority = p
		cur.Donated = false
	}
	u.ctrl.SetLevel(old)

	u.YieldIfOutranked()
}

// Priority returns the running thread's effective priority.
func (u *Uniprocessor) Priority() int {
	return u.current.Priority
}

// YieldIfOutranked yields when a ready thread has a higher effective
// priority than the running one.
func (u *Uniprocessor) YieldIfOutranked() {
	if u.ctrl.InContext() {
		return
	}

	old := u.ctrl.Disable()
	front, ok := u.ready.Front()
	outranked := ok && front.Priority > u.current.Priority
	u.ctrl.SetLevel(old)

	if outranked {
		u.Yield()
	}
}

// Tick does per-tick accounting. It runs in interrupt context.
func (u *Uniprocessor) Tick() {
	if u.current == u.idle {
		u.stats.IdleTicks++
	} else {
		u.stats.KernelTicks++
	}

	u.sliceTicks++
	if u.sliceTicks >= u.cfg.TimeSlice {
		u.ctrl.YieldOnReturn()
	}
}

// Stats returns the scheduler counters.
func (u *Uniprocessor) Stats() Stats {
	return u.stats
}

// Threads returns every thread created on this machine, idle included.
func (u *Uniprocessor) Threads() []*thread.Thread {
	out := make([]*thread.Thread, len(u.all))
	copy(out, u.all)
	return out
}

// Ready returns the ready queue in scheduling order.
func (u *Uniprocessor) Ready() []*thread.Thread {
	u.ready.Revalidate()
	return u.ready.Items()
}

func (u *Uniprocessor) create(name string, priority int, fn func()) *thread.Thread {
	u.nextID++
	t := thread.New(u.nextID, name, priority)
	tk := &task{run: make(chan struct{}, 1)}
	u.tasks[t] = tk
	u.all = append(u.all, t)

	go u.run(t, tk, fn)
	return t
}

func (u *Uniprocessor) run(t *thread.Thread, tk *task, fn func()) {
	defer func() { u.exit(t, recover()) }()

	u.await(tk)
	if t != u.idle {
		u.ctrl.Enable()
	}
	fn()
}

func (u *Uniprocessor) exit(t *thread.Thread, r any) {
	if u.halted.Load() {
		return
	}

	if r != nil {
		kerr := kerror.FromPanic(r)
		if kerr.Detail == "" {
			kerr.Detail = fmt.Sprintf("in thread %s", t)
		}
		u.halt(kerr)
		return
	}

	if t == u.main {
		u.halt(nil)
		return
	}

	u.ctrl.Disable()
	t.Status = thread.Dying
	t.Log().Debug("exiting")
	u.schedule()
}

// await parks the calling goroutine until it is handed the CPU.
func (u *Uniprocessor) await(tk *task) {
	select {
	case <-tk.run:
	case <-u.stop:
		runtime.Goexit()
	}
	if u.halted.Load() {
		runtime.Goexit()
	}
}

// schedule switches to the next thread to run. Interrupts must be off and
// the running thread must already have left the Running state.
func (u *Uniprocessor) schedule() {
	cur := u.current
	kerror.Assert(u.ctrl.Level() == interrupt.Off, kerror.CodeInterruptsEnabled, "schedule", "sched",
		"interrupts must be off to schedule")
	kerror.Assert(cur.Status != thread.Running, kerror.CodeBadThreadState, "schedule", "sched",
		"running thread must change state before scheduling")

	next := u.nextToRun()
	next.Status = thread.Running
	u.sliceTicks = 0
	if next == cur {
		return
	}

	u.current = next
	u.stats.Switches++

	mine := u.tasks[cur]
	dying := cur.Status == thread.Dying
	if dying {
		delete(u.tasks, cur)
	}
	u.tasks[next].run <- struct{}{}

	if !dying {
		u.await(mine)
	}
}

func (u *Uniprocessor) nextToRun() *thread.Thread {
	if t, ok := u.ready.PopFront(); ok {
		return t
	}
	return u.idle
}

func (u *Uniprocessor) idleLoop() {
	for {
		if u.stalled() {
			u.halt(u.deadlockError())
			return
		}
		if !u.ctrl.Halt(u.stop) {
			return
		}

		u.ctrl.Disable()
		u.Block()
	}
}

func (u *Uniprocessor) stalled() bool {
	if !u.cfg.DetectDeadlock || !u.ready.Empty() {
		return false
	}
	for _, ws := range u.wakeSources {
		if ws.Sleeping() > 0 {
			return false
		}
	}
	return true
}

func (u *Uniprocessor) deadlockError() error {
	var blocked []string
	for _, t := range u.all {
		if t == u.idle || t.Status != thread.Blocked {
			continue
		}
		desc := t.String()
		if t.BlockedOn != nil {
			desc += " waiting for " + t.BlockedOn.Name()
		}
		blocked = append(blocked, desc)
	}

	u.log.Warn("deadlock", "blocked", len(blocked))
	return kerror.New(kerror.ErrCategoryDeadlock, kerror.CodeDeadlock, "no thread can run").
		WithDetail("blocked: %s", strings.Join(blocked, "; ")).
		WithHint("every thread is blocked and no thread is sleeping on the timer")
}

func (u *Uniprocessor) halt(err error) {
	if !u.halted.CompareAndSwap(false, true) {
		return
	}
	u.ctrl.Shutdown()
	close(u.stop)
	u.done <- err
}
