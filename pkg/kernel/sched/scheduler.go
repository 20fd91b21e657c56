package sched

import (
	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kernel/thread"
)

// Scheduler is the thread subsystem consumed by the synchronization
// primitives and the timer.
type Scheduler interface {
	// Current returns the running thread.
	Current() *thread.Thread
	// Block deschedules the running thread until Unblock is called on it.
	// Interrupts must be off.
	Block()
	// Unblock makes a blocked thread ready. It does not preempt the caller
	// and is safe from interrupt context.
	Unblock(t *thread.Thread)
	// Yield gives up the CPU; the caller stays ready.
	Yield()
	// Interrupts returns the CPU's interrupt controller.
	Interrupts() *interrupt.Controller
}

// Ticker receives the timer's per-tick callback, from interrupt context.
type Ticker interface {
	Tick()
}

// WakeSource is anything that can make blocked threads ready on its own,
// such as the timer's sleep set. Deadlock detection consults it.
type WakeSource interface {
	Sleeping() int
}
