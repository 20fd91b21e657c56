package scenarios

import (
	"fmt"

	"kernsync/pkg/kernel/synch"
	"kernsync/pkg/kernel/thread"
)

var alarmSingle = Scenario{
	Name:        "alarm-single",
	Description: "five threads each sleep once; wake-ups come in duration order",
	run:         sleepInOrder(5, 1),
}

var alarmMultiple = Scenario{
	Name:        "alarm-multiple",
	Description: "five threads each sleep seven times; wake-ups come in product order",
	run:         sleepInOrder(5, 7),
}

type wakeRecord struct {
	thread    int
	iteration int
	duration  int
}

// sleepInOrder has thread i sleep in steps of (i+1)*10 ticks and checks that
// iteration*duration never decreases across the order of wake-ups.
func sleepInOrder(threads, iterations int) func(e *Env) {
	return func(e *Env) {
		e.Msg("Creating %d threads to sleep %d times each.", threads, iterations)
		e.Msg("Thread i sleeps (i+1)*10 ticks each time.")

		tm := e.Timer()
		start := tm.Ticks() + 100
		out := synch.NewLock(e.CPU(), "output")
		var wakes []wakeRecord

		for i := range threads {
			duration := (i + 1) * 10
			e.CPU().Spawn(fmt.Sprintf("thread %d", i), thread.PriDefault, func() {
				for it := 1; it <= iterations; it++ {
					tm.Sleep(start + int64(it*duration) - tm.Ticks())

					out.Acquire()
					wakes = append(wakes, wakeRecord{thread: i, iteration: it, duration: duration})
					out.Release()
				}
			})
		}

		tm.Sleep(100 + int64(threads*iterations*10) + 100)

		out.Acquire()
		defer out.Release()

		e.Check(len(wakes) == threads*iterations, "%d wake-ups recorded, want %d", len(wakes), threads*iterations)
		last := 0
		for _, w := range wakes {
			product := w.iteration * w.duration
			e.Msg("thread %d: duration=%d, iteration=%d, product=%d", w.thread, w.duration, w.iteration, product)
			e.Check(product >= last, "thread %d woke up out of order (product %d after %d)", w.thread, product, last)
			last = product
		}
	}
}

const (
	simultaneousThreads    = 3
	simultaneousIterations = 5
)

var alarmSimultaneous = Scenario{
	Name:        "alarm-simultaneous",
	Description: "three threads wake on the same tick five times",
	run: func(e *Env) {
		type record struct {
			thread int
			tick   int64
		}

		tm := e.Timer()
		start := tm.Ticks() + 100
		var wakes []record

		for i := range simultaneousThreads {
			e.CPU().Spawn(fmt.Sprintf("thread %d", i), thread.PriDefault, func() {
				for it := 1; it <= simultaneousIterations; it++ {
					tm.Sleep(start + int64(it*10) - tm.Ticks())
					wakes = append(wakes, record{thread: i, tick: tm.Ticks()})
				}
			})
		}

		tm.Sleep(100 + simultaneousIterations*10 + 100)

		e.Check(len(wakes) == simultaneousThreads*simultaneousIterations,
			"%d wake-ups recorded", len(wakes))
		prev := start
		for k, w := range wakes {
			e.Msg("iteration %d, thread %d: woke up %d ticks later", k/simultaneousThreads, w.thread, w.tick-prev)
			prev = w.tick
		}
	},
	expect: func() []string {
		var lines []string
		for k := range simultaneousThreads * simultaneousIterations {
			later := 0
			if k%simultaneousThreads == 0 {
				later = 10
			}
			lines = append(lines, fmt.Sprintf("iteration %d, thread %d: woke up %d ticks later",
				k/simultaneousThreads, k%simultaneousThreads, later))
		}
		return lines
	},
}

var alarmPriority = Scenario{
	Name:        "alarm-priority",
	Description: "threads waking on the same tick run highest priority first",
	run: func(e *Env) {
		tm := e.Timer()
		wakeAt := tm.Ticks() + 5*int64(tm.Freq())
		done := synch.NewSemaphore(e.CPU(), 0)

		for i := range 10 {
			pri := thread.PriDefault - (i+5)%10 - 1
			name := fmt.Sprintf("priority %d", pri)
			e.CPU().Spawn(name, pri, func() {
				tm.Sleep(wakeAt - tm.Ticks())
				e.Msg("Thread %s woke up.", name)
				done.Up()
			})
		}

		e.CPU().SetPriority(thread.PriMin)
		for range 10 {
			done.Down()
		}
	},
	expect: func() []string {
		var lines []string
		for pri := thread.PriDefault - 1; pri >= thread.PriDefault-10; pri-- {
			lines = append(lines, fmt.Sprintf("Thread priority %d woke up.", pri))
		}
		return lines
	},
}

var alarmZero = Scenario{
	Name:        "alarm-zero",
	Description: "sleeping zero ticks returns at once",
	run:         sleepReturnsAtOnce(0),
	expect:      func() []string { return []string{"PASS"} },
}

var alarmNegative = Scenario{
	Name:        "alarm-negative",
	Description: "sleeping a negative number of ticks returns at once",
	run:         sleepReturnsAtOnce(-100),
	expect:      func() []string { return []string{"PASS"} },
}

func sleepReturnsAtOnce(n int64) func(e *Env) {
	return func(e *Env) {
		tm := e.Timer()
		start := tm.Ticks()
		tm.Sleep(n)
		e.Check(tm.Elapsed(start) == 0, "Sleep(%d) took %d ticks", n, tm.Elapsed(start))
		e.Msg("PASS")
	}
}
