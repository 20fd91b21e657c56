package interrupt

import (
	"sync"
	"testing"

	"kernsync/pkg/kerror"
)

func expectFatal(t *testing.T, code string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected fatal %s, got none", code)
		}
		if kerr, ok := r.(*kerror.KernelError); !ok || kerr.Code != code {
			t.Fatalf("expected fatal %s, got %v", code, r)
		}
	}()
	fn()
}

func TestNewControllerBootsWithInterruptsOff(t *testing.T) {
	c := New()
	if c.Level() != Off {
		t.Errorf("Level() = %v, want off", c.Level())
	}
	if c.InContext() {
		t.Error("InContext() should be false at boot")
	}
	if c.Pending() {
		t.Error("nothing should be pending at boot")
	}
}

func TestDisableEnableReturnPreviousLevel(t *testing.T) {
	c := New()

	if old := c.Enable(); old != Off {
		t.Errorf("Enable() returned %v, want off", old)
	}
	if old := c.Disable(); old != On {
		t.Errorf("Disable() returned %v, want on", old)
	}
	if old := c.SetLevel(On); old != Off {
		t.Errorf("SetLevel(On) returned %v, want off", old)
	}
	if old := c.SetLevel(Off); old != On {
		t.Errorf("SetLevel(Off) returned %v, want on", old)
	}
}

func TestRaiseWhileMaskedDeliversOnEnable(t *testing.T) {
	c := New()
	var seen []Vector
	c.RegisterExternal(Timer, func(f *Frame) {
		if !c.InContext() {
			t.Error("handler should run in interrupt context")
		}
		if c.Level() != Off {
			t.Error("handler should run with interrupts off")
		}
		seen = append(seen, f.Vector)
	}, "8254 Timer")

	c.Raise(Timer)
	c.Raise(Timer) // same line, single pending bit
	c.Poll()
	if len(seen) != 0 {
		t.Fatal("interrupt delivered while masked")
	}

	c.Enable()
	if len(seen) != 1 {
		t.Fatalf("delivered %d interrupts, want 1", len(seen))
	}
	if c.Level() != On || c.InContext() {
		t.Error("controller state not restored after handler")
	}
	if c.Count(Timer) != 1 {
		t.Errorf("Count = %d, want 1", c.Count(Timer))
	}
}

func TestDeliveryOrderIsLowestLineFirst(t *testing.T) {
	c := New()
	var order []Vector
	for _, v := range []Vector{Timer, Timer + 1, Timer + 4} {
		c.RegisterExternal(v, func(f *Frame) { order = append(order, f.Vector) }, "irq")
	}

	c.Raise(Timer + 4)
	c.Raise(Timer + 1)
	c.Raise(Timer)
	c.Enable()

	want := []Vector{Timer, Timer + 1, Timer + 4}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestUnexpectedInterruptIsCounted(t *testing.T) {
	c := New()
	c.Enable()
	c.Raise(Timer + 3)
	c.Poll()

	if c.Unexpected() != 1 {
		t.Errorf("Unexpected() = %d, want 1", c.Unexpected())
	}
}

func TestYieldOnReturn(t *testing.T) {
	c := New()
	yields := 0
	c.SetYield(func() {
		if c.InContext() {
			t.Error("yield must run after the handler returns")
		}
		yields++
	})
	c.RegisterExternal(Timer, func(f *Frame) { f.YieldOnReturn() }, "8254 Timer")
	c.RegisterExternal(Timer+1, func(f *Frame) {}, "kbd")

	c.Enable()
	c.Raise(Timer)
	c.Poll()
	c.Raise(Timer + 1)
	c.Poll()

	if yields != 1 {
		t.Errorf("yields = %d, want 1", yields)
	}
}

func TestContractViolations(t *testing.T) {
	c := New()

	expectFatal(t, kerror.CodeBadVector, func() { c.Raise(0x0e) })
	expectFatal(t, kerror.CodeNilHandle, func() { c.RegisterExternal(Timer, nil, "x") })
	expectFatal(t, kerror.CodeInterruptContext, func() { c.YieldOnReturn() })

	c.RegisterExternal(Timer, func(*Frame) {}, "a")
	expectFatal(t, kerror.CodeBadVector, func() { c.RegisterExternal(Timer, func(*Frame) {}, "b") })

	c.RegisterExternal(Timer+1, func(*Frame) { c.Enable() }, "nested")
	expectFatal(t, kerror.CodeInterruptContext, func() {
		c.Enable()
		c.Raise(Timer + 1)
		c.Poll()
	})
}

func TestPollHookRunsAtEveryPollPoint(t *testing.T) {
	c := New()
	cycles := 0
	c.SetPollHook(func() { cycles++ })

	for range 5 {
		c.Poll()
	}
	if cycles != 5 {
		t.Errorf("cycles = %d, want 5", cycles)
	}
}

func TestHaltUsesHookToFastForward(t *testing.T) {
	c := New()
	ticks := 0
	c.RegisterExternal(Timer, func(*Frame) { ticks++ }, "8254 Timer")
	c.SetHaltHook(func() { c.Raise(Timer) })

	if !c.Halt(nil) {
		t.Fatal("Halt returned false")
	}
	if ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}
	if c.Level() != On {
		t.Error("Halt should leave interrupts on")
	}
}

func TestHaltWaitsForHardware(t *testing.T) {
	c := New()
	delivered := make(chan struct{}, 1)
	c.RegisterExternal(Timer, func(*Frame) { delivered <- struct{}{} }, "8254 Timer")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Raise(Timer)
	}()

	if !c.Halt(make(chan struct{})) {
		t.Fatal("Halt returned false")
	}
	wg.Wait()
	select {
	case <-delivered:
	default:
		t.Error("interrupt was not delivered")
	}
}

func TestHaltReturnsOnStop(t *testing.T) {
	c := New()
	stop := make(chan struct{})
	close(stop)
	if c.Halt(stop) {
		t.Error("Halt should report false when stopped")
	}
}

func TestShutdownStopsDelivery(t *testing.T) {
	c := New()
	delivered := 0
	c.RegisterExternal(Timer, func(*Frame) { delivered++ }, "8254 Timer")
	c.Shutdown()

	c.Raise(Timer)
	c.Enable()
	c.Poll()
	if delivered != 0 {
		t.Errorf("delivered %d interrupts after shutdown", delivered)
	}
	if c.Halt(nil) {
		t.Error("Halt should fail after shutdown")
	}
}
