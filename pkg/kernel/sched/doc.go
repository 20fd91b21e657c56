// Package sched supplies the thread subsystem that the synchronization
// primitives are built on: the Scheduler interface they consume and a
// simulated single-CPU implementation of it, Uniprocessor.
//
// # Simulated CPU
//
// Every kernel thread runs on its own goroutine, but only the goroutine
// holding the CPU executes kernel code. The CPU is handed from one thread to
// the next over a per-thread channel: the outgoing thread sends on the
// incoming thread's channel and then waits on its own. All scheduler, thread
// and primitive state is therefore touched by one goroutine at a time, and
// the channel operations order those accesses for the Go memory model.
//
// The ready queue is ordered by effective priority, first come first served
// among equals. When nothing is ready the idle thread halts the CPU until an
// interrupt arrives. The timer calls Tick once per tick; after TimeSlice ticks
// the running thread is preempted on return from the interrupt.
//
// # Halting
//
// Run boots the machine and returns when the main thread's function returns,
// when any thread panics (the panic is returned as a *kerror.KernelError, the
// simulated kernel panic), or when deadlock detection finds that nothing is
// ready and nothing is sleeping. Threads still parked when the machine halts
// unwind via runtime.Goexit.
package sched
