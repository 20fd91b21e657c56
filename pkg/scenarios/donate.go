package scenarios

import (
	"fmt"

	"kernsync/pkg/kernel/synch"
	"kernsync/pkg/kernel/thread"
)

// checkPriority records the running thread's expected and actual priority.
func checkPriority(e *Env, who string, want int) {
	got := e.CPU().Priority()
	e.Msg("%s should have priority %d.  Actual priority: %d.", who, want, got)
	e.Check(got == want, "%s has priority %d, want %d", who, got, want)
}

var donateOne = Scenario{
	Name:        "priority-donate-one",
	Description: "two waiters donate to a lock holder in turn",
	run: func(e *Env) {
		cpu := e.CPU()
		lock := synch.NewLock(cpu, "lock")
		lock.Acquire()

		for i, name := range []string{"acquire1", "acquire2"} {
			cpu.Spawn(name, thread.PriDefault+i+1, func() {
				lock.Acquire()
				e.Msg("%s: got the lock", name)
				lock.Release()
				e.Msg("%s: done", name)
			})
			checkPriority(e, "This thread", thread.PriDefault+i+1)
		}

		lock.Release()
		e.Msg("acquire2, acquire1 must already have finished, in that order.")
		checkPriority(e, "This", thread.PriDefault)
	},
	expect: func() []string {
		return []string{
			fmt.Sprintf("This thread should have priority %d.  Actual priority: %d.", thread.PriDefault+1, thread.PriDefault+1),
			fmt.Sprintf("This thread should have priority %d.  Actual priority: %d.", thread.PriDefault+2, thread.PriDefault+2),
			"acquire2: got the lock",
			"acquire2: done",
			"acquire1: got the lock",
			"acquire1: done",
			"acquire2, acquire1 must already have finished, in that order.",
			fmt.Sprintf("This should have priority %d.  Actual priority: %d.", thread.PriDefault, thread.PriDefault),
		}
	},
}

var donateMultiple = Scenario{
	Name:        "priority-donate-multiple",
	Description: "a holder of two locks keeps the donation of the lock it still holds",
	run: func(e *Env) {
		cpu := e.CPU()
		a, b := synch.NewLock(cpu, "a"), synch.NewLock(cpu, "b")
		a.Acquire()
		b.Acquire()

		waitOn := func(name string, l *synch.Lock) func() {
			return func() {
				l.Acquire()
				e.Msg("Thread %s acquired lock %s.", name, l.Name())
				l.Release()
				e.Msg("Thread %s finished.", name)
			}
		}

		cpu.Spawn("a", thread.PriDefault+1, waitOn("a", a))
		checkPriority(e, "Main thread", thread.PriDefault+1)
		cpu.Spawn("b", thread.PriDefault+2, waitOn("b", b))
		checkPriority(e, "Main thread", thread.PriDefault+2)

		b.Release()
		e.Msg("Thread b should have just finished.")
		checkPriority(e, "Main thread", thread.PriDefault+1)

		a.Release()
		e.Msg("Thread a should have just finished.")
		checkPriority(e, "Main thread", thread.PriDefault)
	},
	expect: func() []string {
		p := func(want int) string {
			return fmt.Sprintf("Main thread should have priority %d.  Actual priority: %d.", want, want)
		}
		return []string{
			p(thread.PriDefault + 1),
			p(thread.PriDefault + 2),
			"Thread b acquired lock b.",
			"Thread b finished.",
			"Thread b should have just finished.",
			p(thread.PriDefault + 1),
			"Thread a acquired lock a.",
			"Thread a finished.",
			"Thread a should have just finished.",
			p(thread.PriDefault),
		}
	},
}

var donateNest = Scenario{
	Name:        "priority-donate-nest",
	Description: "donation passes through a thread blocked on a second lock",
	run: func(e *Env) {
		cpu := e.CPU()
		a, b := synch.NewLock(cpu, "a"), synch.NewLock(cpu, "b")
		a.Acquire()

		cpu.Spawn("medium", thread.PriDefault+1, func() {
			b.Acquire()
			a.Acquire()
			checkPriority(e, "Medium thread", thread.PriDefault+2)
			e.Msg("Medium thread got the lock.")
			a.Release()
			cpu.Yield()
			b.Release()
			cpu.Yield()
			e.Msg("High thread should have just finished.")
			e.Msg("Middle thread finished.")
		})
		cpu.Yield()
		checkPriority(e, "Low thread", thread.PriDefault+1)

		cpu.Spawn("high", thread.PriDefault+2, func() {
			b.Acquire()
			e.Msg("High thread got the lock.")
			b.Release()
			e.Msg("High thread finished.")
		})
		cpu.Yield()
		checkPriority(e, "Low thread", thread.PriDefault+2)

		a.Release()
		cpu.Yield()
		e.Msg("Medium thread should just have finished.")
		checkPriority(e, "Low thread", thread.PriDefault)
	},
	expect: func() []string {
		p := func(who string, want int) string {
			return fmt.Sprintf("%s should have priority %d.  Actual priority: %d.", who, want, want)
		}
		return []string{
			p("Low thread", thread.PriDefault+1),
			p("Low thread", thread.PriDefault+2),
			p("Medium thread", thread.PriDefault+2),
			"Medium thread got the lock.",
			"High thread got the lock.",
			"High thread finished.",
			"High thread should have just finished.",
			"Middle thread finished.",
			"Medium thread should just have finished.",
			p("Low thread", thread.PriDefault),
		}
	},
}

const chainDepth = 8

var donateChain = Scenario{
	Name:        "priority-donate-chain",
	Description: "donation reaches the bottom of a seven-deep chain and unwinds in order",
	run: func(e *Env) {
		cpu := e.CPU()
		var locks [chainDepth - 1]*synch.Lock
		for i := range locks {
			locks[i] = synch.NewLock(cpu, fmt.Sprintf("lock %d", i))
		}

		cpu.SetPriority(thread.PriMin)
		locks[0].Acquire()

		for i := 1; i < chainDepth; i++ {
			pri := thread.PriMin + i*3
			var first *synch.Lock
			if i < chainDepth-1 {
				first = locks[i]
			}
			second := locks[i-1]
			name := fmt.Sprintf("thread %d", i)

			cpu.Spawn(name, pri, func() {
				if first != nil {
					first.Acquire()
				}
				second.Acquire()
				e.Msg("%s got lock", name)

				second.Release()
				checkPriority(e, name, (chainDepth-1)*3)

				if first != nil {
					first.Release()
				}
				e.Msg("%s finishing with priority %d.", name, cpu.Priority())
			})
			checkPriority(e, "main", pri)

			interloper := fmt.Sprintf("interloper %d", i)
			cpu.Spawn(interloper, pri-1, func() { e.Msg("%s finished.", interloper) })
		}

		locks[0].Release()
		e.Msg("main finishing with priority %d.", cpu.Priority())
	},
	expect: func() []string {
		p := func(who string, want int) string {
			return fmt.Sprintf("%s should have priority %d.  Actual priority: %d.", who, want, want)
		}

		var lines []string
		for i := 1; i < chainDepth; i++ {
			lines = append(lines, p("main", i*3))
		}
		for i := 1; i < chainDepth; i++ {
			lines = append(lines, fmt.Sprintf("thread %d got lock", i), p(fmt.Sprintf("thread %d", i), (chainDepth-1)*3))
		}
		for i := chainDepth - 1; i > 0; i-- {
			lines = append(lines,
				fmt.Sprintf("thread %d finishing with priority %d.", i, i*3),
				fmt.Sprintf("interloper %d finished.", i))
		}
		return append(lines, "main finishing with priority 0.")
	},
}

var donateSema = Scenario{
	Name:        "priority-donate-sema",
	Description: "a donated holder blocked on a semaphore is woken ahead of a lower waiter",
	run: func(e *Env) {
		cpu := e.CPU()
		lock := synch.NewLock(cpu, "lock")
		sema := synch.NewSemaphore(cpu, 0)

		cpu.Spawn("low", thread.PriDefault+1, func() {
			lock.Acquire()
			e.Msg("Thread L acquired lock.")
			sema.Down()
			e.Msg("Thread L downed semaphore.")
			lock.Release()
			e.Msg("Thread L finished.")
		})
		cpu.Spawn("med", thread.PriDefault+3, func() {
			sema.Down()
			e.Msg("Thread M finished.")
		})
		cpu.Spawn("high", thread.PriDefault+5, func() {
			lock.Acquire()
			e.Msg("Thread H acquired lock.")
			sema.Up()
			lock.Release()
			e.Msg("Thread H finished.")
		})

		sema.Up()
		e.Msg("Main thread finished.")
	},
	expect: func() []string {
		return []string{
			"Thread L acquired lock.",
			"Thread L downed semaphore.",
			"Thread H acquired lock.",
			"Thread H finished.",
			"Thread M finished.",
			"Thread L finished.",
			"Main thread finished.",
		}
	},
}

var donateLower = Scenario{
	Name:        "priority-donate-lower",
	Description: "lowering the base priority of a donated thread keeps the donation",
	run: func(e *Env) {
		cpu := e.CPU()
		lock := synch.NewLock(cpu, "lock")
		lock.Acquire()

		cpu.Spawn("acquire", thread.PriDefault+10, func() {
			lock.Acquire()
			e.Msg("acquire: got the lock")
			lock.Release()
			e.Msg("acquire: done")
		})
		checkPriority(e, "Main thread", thread.PriDefault+10)

		e.Msg("Lowering base priority...")
		cpu.SetPriority(thread.PriDefault - 10)
		checkPriority(e, "Main thread", thread.PriDefault+10)

		lock.Release()
		e.Msg("acquire must already have finished.")
		checkPriority(e, "Main thread", thread.PriDefault-10)
	},
	expect: func() []string {
		p := func(want int) string {
			return fmt.Sprintf("Main thread should have priority %d.  Actual priority: %d.", want, want)
		}
		return []string{
			p(thread.PriDefault + 10),
			"Lowering base priority...",
			p(thread.PriDefault + 10),
			"acquire: got the lock",
			"acquire: done",
			"acquire must already have finished.",
			p(thread.PriDefault - 10),
		}
	},
}
