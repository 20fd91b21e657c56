package synch

import (
	"cmp"
	"fmt"

	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/waitq"
	"kernsync/pkg/kerror"
)

// condWaiter is one thread's single-use wakeup semaphore.
type condWaiter struct {
	sema Semaphore
}

// byTopWaiter orders condition waiters by the priority of the thread
// blocked on each. Entries nobody is blocked on yet sort last.
func byTopWaiter(a, b *condWaiter) int {
	at, aok := a.sema.top()
	bt, bok := b.sema.top()
	switch {
	case aok && bok:
		return cmp.Compare(bt.Priority, at.Priority)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return 0
	}
}

// Condition is a Mesa-style condition variable: a signal only makes the
// waiter runnable, so waiters must recheck their condition.
type Condition struct {
	sched   sched.Scheduler
	waiters *waitq.Queue[*condWaiter]
}

// NewCondition returns a condition variable with no waiters.
func NewCondition(sc sched.Scheduler) *Condition {
	c := &Condition{}
	c.Init(sc)
	return c
}

// Init initializes c with no waiters.
func (c *Condition) Init(sc sched.Scheduler) {
	kerror.Assert(c != nil, kerror.CodeNilHandle, "Condition.Init", "synch", "nil condition")
	kerror.Assert(sc != nil, kerror.CodeNilHandle, "Condition.Init", "synch", "nil scheduler")

	c.sched = sc
	c.waiters = waitq.NewRevalidating(byTopWaiter)
}

// Wait atomically releases lock and blocks until signaled, then reacquires
// lock before returning. The caller must hold lock.
func (c *Condition) Wait(lock *Lock) {
	c.check("Condition.Wait", lock)

	w := &condWaiter{}
	w.sema.Init(c.sched, 0)

	intr := c.sched.Interrupts()
	old := intr.Disable()
	c.waiters.Insert(w)
	intr.SetLevel(old)

	lock.Release()
	w.sema.Down()
	lock.Acquire()
}

// Signal wakes the highest-priority waiter, if any. The caller must hold
// lock.
func (c *Condition) Signal(lock *Lock) {
	c.check("Condition.Signal", lock)

	intr := c.sched.Interrupts()
	old := intr.Disable()
	defer intr.SetLevel(old)

	if w, ok := c.waiters.PopFront(); ok {
		w.sema.Up()
	}
}

// Broadcast wakes every waiter, highest priority first. The caller must hold
// lock.
func (c *Condition) Broadcast(lock *Lock) {
	c.check("Condition.Broadcast", lock)

	for !c.waiters.Empty() {
		c.Signal(lock)
	}
}

// Len returns the number of waiters.
func (c *Condition) Len() int {
	return c.waiters.Len()
}

func (c *Condition) check(op string, lock *Lock) {
	kerror.Assert(c != nil, kerror.CodeNilHandle, op, "synch", "nil condition")
	kerror.Assert(c.sched != nil, kerror.CodeNilHandle, op, "synch", "condition used before Init")
	kerror.Assert(lock != nil, kerror.CodeNilHandle, op, "synch", "nil lock")
	kerror.Assert(!c.sched.Interrupts().InContext(), kerror.CodeInterruptContext, op, "synch",
		"condition variables cannot be used inside an interrupt handler")
	kerror.Assert(lock.HeldByCurrent(), kerror.CodeLockNotHeld, op, "synch",
		fmt.Sprintf("lock %q is not held by the current thread", lock.Name()))
}
