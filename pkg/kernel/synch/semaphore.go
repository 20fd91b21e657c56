package synch

import (
	"fmt"
	"io"

	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/kernel/waitq"
	"kernsync/pkg/kerror"
)

// Semaphore is a counting semaphore with a priority-ordered wait queue.
type Semaphore struct {
	sched   sched.Scheduler
	value   uint
	waiters *waitq.Queue[*thread.Thread]
}

// NewSemaphore returns a semaphore with the given initial value.
func NewSemaphore(sc sched.Scheduler, value uint) *Semaphore {
	s := &Semaphore{}
	s.Init(sc, value)
	return s
}

// Init initializes s with the given value and no waiters.
func (s *Semaphore) Init(sc sched.Scheduler, value uint) {
	kerror.Assert(s != nil, kerror.CodeNilHandle, "Semaphore.Init", "synch", "nil semaphore")
	kerror.Assert(sc != nil, kerror.CodeNilHandle, "Semaphore.Init", "synch", "nil scheduler")

	s.sched = sc
	s.value = value
	s.waiters = waitq.NewRevalidating(thread.ByPriority)
}

// Down waits for the value to become positive and then decrements it.
// It may block, so it must not be called from an interrupt handler. It may
// be called with interrupts off.
func (s *Semaphore) Down() {
	s.check("Semaphore.Down")
	intr := s.sched.Interrupts()
	kerror.Assert(!intr.InContext(), kerror.CodeInterruptContext, "Semaphore.Down", "synch",
		"cannot wait on a semaphore inside an interrupt handler")

	old := intr.Disable()
	defer intr.SetLevel(old)

	for s.value == 0 {
		cur := s.sched.Current()
		s.waiters.Insert(cur)
		cur.Log().Debug("waiting on semaphore", "waiters", s.waiters.Len())
		s.sched.Block()
	}
	s.value--
}

// TryDown decrements the value if it is positive and reports whether it
// did. It never blocks and is safe from interrupt handlers.
func (s *Semaphore) TryDown() bool {
	s.check("Semaphore.TryDown")
	intr := s.sched.Interrupts()

	old := intr.Disable()
	defer intr.SetLevel(old)

	if s.value == 0 {
		return false
	}
	s.value--
	return true
}

// Up increments the value and wakes the highest-priority waiter, if any.
// Outside an interrupt handler the caller yields when the woken thread
// outranks it.
func (s *Semaphore) Up() {
	s.check("Semaphore.Up")
	intr := s.sched.Interrupts()

	old := intr.Disable()
	woken, ok := s.waiters.PopFront()
	if ok {
		s.sched.Unblock(woken)
	}
	s.value++
	intr.SetLevel(old)

	if ok && !intr.InContext() && woken.Priority > s.sched.Current().Priority {
		s.sched.Yield()
	}
}

// Value returns the current value.
func (s *Semaphore) Value() uint {
	return s.value
}

// Waiters returns the blocked threads in the order they would be woken.
func (s *Semaphore) Waiters() []*thread.Thread {
	s.waiters.Revalidate()
	return s.waiters.Items()
}

// top returns the waiter Up would wake next.
func (s *Semaphore) top() (*thread.Thread, bool) {
	return s.waiters.Front()
}

func (s *Semaphore) check(op string) {
	kerror.Assert(s != nil, kerror.CodeNilHandle, op, "synch", "nil semaphore")
	kerror.Assert(s.sched != nil, kerror.CodeNilHandle, op, "synch", "semaphore used before Init")
}

// Spawner is a scheduler that can create threads.
type Spawner interface {
	sched.Scheduler
	Spawn(name string, priority int, fn func()) *thread.Thread
}

// SelfTest bounces control between the running thread and a helper thread
// ten times through a pair of semaphores, writing progress to w.
func SelfTest(sc Spawner, w io.Writer) {
	var sema [2]Semaphore
	sema[0].Init(sc, 0)
	sema[1].Init(sc, 0)

	fmt.Fprint(w, "Testing semaphores...")
	sc.Spawn("sema-test", thread.PriDefault, func() {
		for range 10 {
			sema[0].Down()
			sema[1].Up()
		}
	})
	for range 10 {
		sema[0].Up()
		sema[1].Down()
	}
	fmt.Fprintln(w, "done.")
}
