package scenarios

import (
	"fmt"
	"strings"

	"kernsync/pkg/kernel/synch"
	"kernsync/pkg/kernel/thread"
)

var priorityChange = Scenario{
	Name:        "priority-change",
	Description: "a thread that lowers its priority below main's yields at once",
	run: func(e *Env) {
		cpu := e.CPU()
		e.Msg("Creating a high-priority thread 2.")
		cpu.Spawn("thread 2", thread.PriDefault+1, func() {
			e.Msg("Thread 2 now lowering priority.")
			cpu.SetPriority(thread.PriDefault - 1)
			e.Msg("Thread 2 exiting.")
		})
		e.Msg("Thread 2 should have just lowered its priority.")
		cpu.SetPriority(thread.PriDefault - 2)
		e.Msg("Thread 2 should have just exited.")
	},
	expect: func() []string {
		return []string{
			"Creating a high-priority thread 2.",
			"Thread 2 now lowering priority.",
			"Thread 2 should have just lowered its priority.",
			"Thread 2 exiting.",
			"Thread 2 should have just exited.",
		}
	},
}

var priorityPreempt = Scenario{
	Name:        "priority-preempt",
	Description: "creating a higher-priority thread preempts the creator",
	run: func(e *Env) {
		e.CPU().Spawn("high-priority", thread.PriDefault+1, func() {
			for i := range 5 {
				e.Msg("Thread high-priority iteration %d", i)
			}
			e.Msg("Thread high-priority done!")
		})
		e.Msg("The high-priority thread should have already completed.")
	},
	expect: func() []string {
		var lines []string
		for i := range 5 {
			lines = append(lines, fmt.Sprintf("Thread high-priority iteration %d", i))
		}
		return append(lines,
			"Thread high-priority done!",
			"The high-priority thread should have already completed.")
	},
}

const (
	fifoThreads    = 16
	fifoIterations = 16
)

var priorityFIFO = Scenario{
	Name:        "priority-fifo",
	Description: "equal-priority threads that yield run round robin",
	run: func(e *Env) {
		cpu := e.CPU()
		out := synch.NewLock(cpu, "output")
		var order []int

		cpu.SetPriority(thread.PriDefault + 2)
		for i := range fifoThreads {
			cpu.Spawn(fmt.Sprintf("%d", i), thread.PriDefault+1, func() {
				for range fifoIterations {
					out.Acquire()
					order = append(order, i)
					out.Release()
					cpu.Yield()
				}
			})
		}
		cpu.SetPriority(thread.PriDefault)

		e.Check(len(order) == fifoThreads*fifoIterations, "%d entries recorded", len(order))
		for it := 0; it+fifoThreads <= len(order); it += fifoThreads {
			ids := make([]string, fifoThreads)
			for j, id := range order[it : it+fifoThreads] {
				ids[j] = fmt.Sprint(id)
			}
			e.Msg("iteration: %s", strings.Join(ids, " "))
		}
	},
	expect: func() []string {
		ids := make([]string, fifoThreads)
		for i := range ids {
			ids[i] = fmt.Sprint(i)
		}
		line := "iteration: " + strings.Join(ids, " ")

		lines := make([]string, fifoIterations)
		for i := range lines {
			lines[i] = line
		}
		return lines
	},
}

var prioritySema = Scenario{
	Name:        "priority-sema",
	Description: "a semaphore wakes its highest-priority waiter first",
	run: func(e *Env) {
		cpu := e.CPU()
		sema := synch.NewSemaphore(cpu, 0)
		cpu.SetPriority(thread.PriMin)

		for i := range 10 {
			pri := thread.PriDefault - (i+3)%10 - 1
			name := fmt.Sprintf("priority %d", pri)
			cpu.Spawn(name, pri, func() {
				sema.Down()
				e.Msg("Thread %s woke up.", name)
			})
		}

		for range 10 {
			sema.Up()
			e.Msg("Back in main thread.")
		}
	},
	expect: func() []string {
		var lines []string
		for pri := thread.PriDefault - 1; pri >= thread.PriDefault-10; pri-- {
			lines = append(lines, fmt.Sprintf("Thread priority %d woke up.", pri), "Back in main thread.")
		}
		return lines
	},
}

var priorityCondvar = Scenario{
	Name:        "priority-condvar",
	Description: "a condition variable signals its highest-priority waiter first",
	run: func(e *Env) {
		cpu := e.CPU()
		lock := synch.NewLock(cpu, "monitor")
		cond := synch.NewCondition(cpu)
		cpu.SetPriority(thread.PriMin)

		for i := range 10 {
			pri := thread.PriDefault - (i+7)%10 - 1
			name := fmt.Sprintf("priority %d", pri)
			cpu.Spawn(name, pri, func() {
				lock.Acquire()
				e.Msg("Thread %s starting.", name)
				cond.Wait(lock)
				e.Msg("Thread %s woke up.", name)
				lock.Release()
			})
		}

		for range 10 {
			lock.Acquire()
			e.Msg("Signaling...")
			cond.Signal(lock)
			lock.Release()
		}
	},
	expect: func() []string {
		var lines []string
		for i := range 10 {
			lines = append(lines, fmt.Sprintf("Thread priority %d starting.", thread.PriDefault-(i+7)%10-1))
		}
		for pri := thread.PriDefault - 1; pri >= thread.PriDefault-10; pri-- {
			lines = append(lines, "Signaling...", fmt.Sprintf("Thread priority %d woke up.", pri))
		}
		return lines
	},
}

var semaSelfTest = Scenario{
	Name:        "sema-self-test",
	Description: "two threads ping-pong ten times through a pair of semaphores",
	run: func(e *Env) {
		var b strings.Builder
		synch.SelfTest(e.CPU(), &b)
		e.Msg("%s", strings.TrimSpace(b.String()))
	},
	expect: func() []string { return []string{"Testing semaphores...done."} },
}
