package synch

import (
	"fmt"
	"log/slog"

	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"
)

// Lock is a non-recursive mutual exclusion lock owned by at most one
// thread. Threads waiting for it donate their priority to the holder.
type Lock struct {
	name   string
	sched  sched.Scheduler
	holder *thread.Thread
	sema   Semaphore
	log    *slog.Logger
}

var _ thread.LockHandle = (*Lock)(nil)

// NewLock returns an unheld lock.
func NewLock(sc sched.Scheduler, name string) *Lock {
	l := &Lock{}
	l.Init(sc, name)
	return l
}

// Init initializes l as unheld.
func (l *Lock) Init(sc sched.Scheduler, name string) {
	kerror.Assert(l != nil, kerror.CodeNilHandle, "Lock.Init", "synch", "nil lock")

	l.name = name
	l.sched = sc
	l.holder = nil
	l.sema.Init(sc, 1)
	l.log = logging.WithLock(name)
}

// Acquire blocks until the lock is free and takes it. While waiting, the
// caller donates its priority along the chain of lock holders.
func (l *Lock) Acquire() {
	l.check("Lock.Acquire")
	intr := l.sched.Interrupts()
	kerror.Assert(!intr.InContext(), kerror.CodeInterruptContext, "Lock.Acquire", "synch",
		"cannot acquire a lock inside an interrupt handler")
	kerror.Assert(!l.HeldByCurrent(), kerror.CodeLockHeld, "Lock.Acquire", "synch",
		fmt.Sprintf("lock %q already held by the current thread", l.name))

	old := intr.Disable()
	defer intr.SetLevel(old)

	cur := l.sched.Current()
	cur.BlockedOn = l
	if l.holder != nil {
		l.log.Debug("contended", "holder", l.holder.Name, "waiter", cur.Name, "priority", cur.Priority)
		donate(cur, l)
	}
	l.sema.Down()

	cur.BlockedOn = nil
	l.holder = cur
	cur.AddOwned(l)
}

// TryAcquire takes the lock if it is free and reports whether it did. It
// never blocks.
func (l *Lock) TryAcquire() bool {
	l.check("Lock.TryAcquire")
	kerror.Assert(!l.HeldByCurrent(), kerror.CodeLockHeld, "Lock.TryAcquire", "synch",
		fmt.Sprintf("lock %q already held by the current thread", l.name))

	intr := l.sched.Interrupts()
	old := intr.Disable()
	defer intr.SetLevel(old)

	if !l.sema.TryDown() {
		return false
	}
	cur := l.sched.Current()
	l.holder = cur
	cur.AddOwned(l)
	return true
}

// Release gives up the lock, rolls back donated priority and wakes the
// highest-priority waiter.
func (l *Lock) Release() {
	l.check("Lock.Release")
	kerror.Assert(l.HeldByCurrent(), kerror.CodeLockNotHeld, "Lock.Release", "synch",
		fmt.Sprintf("lock %q is not held by the current thread", l.name))

	intr := l.sched.Interrupts()
	old := intr.Disable()
	defer intr.SetLevel(old)

	l.rollback(l.holder)
	l.holder = nil
	l.sema.Up()
}

// HeldByCurrent reports whether the running thread holds the lock.
func (l *Lock) HeldByCurrent() bool {
	l.check("Lock.HeldByCurrent")
	return l.holder != nil && l.holder == l.sched.Current()
}

// Holder returns the owning thread, or nil.
func (l *Lock) Holder() *thread.Thread {
	return l.holder
}

// TopWaiter returns the highest-priority thread waiting for the lock.
func (l *Lock) TopWaiter() (*thread.Thread, bool) {
	return l.sema.top()
}

// Waiters returns the threads waiting for the lock, highest priority first.
func (l *Lock) Waiters() []*thread.Thread {
	return l.sema.Waiters()
}

// Name returns the lock's name.
func (l *Lock) Name() string {
	return l.name
}

func (l *Lock) String() string {
	if l.holder == nil {
		return fmt.Sprintf("lock %q (free)", l.name)
	}
	return fmt.Sprintf("lock %q (held by %s)", l.name, l.holder)
}

func (l *Lock) check(op string) {
	kerror.Assert(l != nil, kerror.CodeNilHandle, op, "synch", "nil lock")
	kerror.Assert(l.sched != nil, kerror.CodeNilHandle, op, "synch", "lock used before Init")
}
