// Package synch implements the kernel's blocking synchronization primitives
// on top of a sched.Scheduler: a counting semaphore, a non-recursive lock
// with priority donation, and a Mesa-style condition variable.
//
// Every primitive gets its atomicity from the single CPU: state is only
// touched with interrupts disabled, and the previous interrupt level is
// restored before returning.
//
// # Priority donation
//
// A thread that blocks on a held lock raises the holder's effective priority
// to its own, and the raise propagates along the chain of locks the holders
// are themselves blocked on. Releasing a lock rolls the holder's priority
// back: to its base priority when it holds nothing else anyone waits for,
// otherwise to the priority of the top waiter of its most contended lock.
//
// # Wait queues
//
// Waiters are released highest effective priority first and in arrival
// order among equals. Because donation can change a queued thread's
// priority, wait queues are re-sorted when a waiter is chosen rather than
// trusted from insertion time.
//
// Contract violations (acquiring a held lock, releasing a lock the caller
// does not own, blocking in an interrupt handler) are fatal: they panic with
// a *kerror.KernelError, which halts the simulated machine.
package synch
