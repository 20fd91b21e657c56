package interrupt

import (
	"fmt"
	"log/slog"

	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"

	"go.uber.org/atomic"
)

// Level is the interrupt mask state of the CPU.
type Level int32

const (
	Off Level = iota // interrupts disabled
	On               // interrupts enabled
)

func (l Level) String() string {
	if l == On {
		return "on"
	}
	return "off"
}

// Vector identifies an interrupt line.
type Vector uint8

const (
	ExternalBase  Vector = 0x20
	ExternalCount        = 16

	// Timer is IRQ 0, wired to the programmable interval timer.
	Timer Vector = ExternalBase
)

// Handler services one external interrupt.
type Handler func(f *Frame)

// Frame describes the interrupt being serviced.
type Frame struct {
	Vector Vector
	Name   string
	ctrl   *Controller
}

// YieldOnReturn asks the controller to yield the interrupted thread once the
// handler returns.
func (f *Frame) YieldOnReturn() {
	f.ctrl.YieldOnReturn()
}

type handlerEntry struct {
	fn   Handler
	name string
}

// Controller is the interrupt controller and mask of one simulated CPU.
type Controller struct {
	level    atomic.Int32
	external atomic.Bool
	stopped  atomic.Bool
	pending  atomic.Uint32
	wake     chan struct{}

	handlers      [ExternalCount]handlerEntry
	counts        [ExternalCount]atomic.Uint64
	unexpected    atomic.Uint64
	yieldOnReturn bool

	yield    func()
	pollHook func()
	haltHook func()

	log *slog.Logger
}

// New returns a controller in the boot state: interrupts off, nothing pending.
func New() *Controller {
	c := &Controller{
		wake: make(chan struct{}, 1),
		log:  logging.WithComponent("interrupt"),
	}
	c.level.Store(int32(Off))
	return c
}

// Level returns the current interrupt level.
func (c *Controller) Level() Level {
	return Level(c.level.Load())
}

// Disable turns interrupts off and returns the previous level.
func (c *Controller) Disable() Level {
	return Level(c.level.Swap(int32(Off)))
}

// Enable turns interrupts on, delivers anything pending, and returns the
// previous level. It must not be called from an interrupt handler.
func (c *Controller) Enable() Level {
	if c.stopped.Load() {
		return Level(c.level.Swap(int32(On)))
	}
	kerror.Assert(!c.InContext(), kerror.CodeInterruptContext, "Enable", "interrupt",
		"interrupts cannot be enabled inside an interrupt handler")

	old := Level(c.level.Swap(int32(On)))
	c.deliver()
	return old
}

// SetLevel enables or disables interrupts as requested and returns the
// previous level.
func (c *Controller) SetLevel(l Level) Level {
	if l == On {
		return c.Enable()
	}
	return c.Disable()
}

// InContext reports whether an external interrupt handler is running.
func (c *Controller) InContext() bool {
	return c.external.Load()
}

// YieldOnReturn requests a yield when the current handler returns.
func (c *Controller) YieldOnReturn() {
	kerror.Assert(c.InContext(), kerror.CodeInterruptContext, "YieldOnReturn", "interrupt",
		"yield on return requested outside an interrupt handler")
	c.yieldOnReturn = true
}

// RegisterExternal installs fn as the handler for an external line.
func (c *Controller) RegisterExternal(vec Vector, fn Handler, name string) {
	idx := checkVector(vec, "RegisterExternal")
	kerror.Assert(fn != nil, kerror.CodeNilHandle, "RegisterExternal", "interrupt", "nil handler")
	kerror.Assert(c.handlers[idx].fn == nil, kerror.CodeBadVector, "RegisterExternal", "interrupt",
		fmt.Sprintf("vector %#x already registered to %q", uint8(vec), c.handlers[idx].name))

	c.handlers[idx] = handlerEntry{fn: fn, name: name}
	c.log.Debug("handler registered", "vector", fmt.Sprintf("%#x", uint8(vec)), "name", name)
}

// SetYield installs the scheduler's yield, used for yield-on-return.
func (c *Controller) SetYield(fn func()) {
	c.yield = fn
}

// SetPollHook installs a function run at every poll point. Virtual clocks use
// it to count CPU cycles.
func (c *Controller) SetPollHook(fn func()) {
	c.pollHook = fn
}

// SetHaltHook installs a function run by Halt when nothing is pending, in
// place of waiting for hardware. Virtual clocks use it to skip ahead to the
// next tick.
func (c *Controller) SetHaltHook(fn func()) {
	c.haltHook = fn
}

// Raise marks an external line pending. Safe from any goroutine.
func (c *Controller) Raise(vec Vector) {
	bit := uint32(1) << checkVector(vec, "Raise")
	for {
		old := c.pending.Load()
		if old&bit != 0 || c.pending.CompareAndSwap(old, old|bit) {
			break
		}
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether any line is waiting to be delivered.
func (c *Controller) Pending() bool {
	return c.pending.Load() != 0
}

// Poll is a poll point: the simulated equivalent of the CPU checking its
// interrupt pin between two instructions.
func (c *Controller) Poll() {
	if c.stopped.Load() || c.InContext() {
		return
	}
	if c.pollHook != nil {
		c.pollHook()
	}
	if c.Level() == On {
		c.deliver()
	}
}

// Halt enables interrupts and waits until one is delivered, like "sti; hlt".
// It returns false if stop is closed or the controller is shut down first.
func (c *Controller) Halt(stop <-chan struct{}) bool {
	kerror.Assert(!c.InContext(), kerror.CodeInterruptContext, "Halt", "interrupt",
		"cannot halt inside an interrupt handler")

	c.level.Store(int32(On))
	for {
		if c.stopped.Load() {
			return false
		}
		if c.Pending() {
			c.deliver()
			return true
		}
		if c.haltHook != nil {
			c.haltHook()
			continue
		}
		select {
		case <-c.wake:
		case <-stop:
			return false
		}
	}
}

// Shutdown stops interrupt delivery for good. Level changes still record the
// level so that threads unwinding after a halt stay harmless.
func (c *Controller) Shutdown() {
	c.stopped.Store(true)
}

// Count returns how many times vec has been delivered.
func (c *Controller) Count(vec Vector) uint64 {
	return c.counts[checkVector(vec, "Count")].Load()
}

// Unexpected returns the number of delivered interrupts that had no handler.
func (c *Controller) Unexpected() uint64 {
	return c.unexpected.Load()
}

// Name returns the registered name of vec, or "" if none.
func (c *Controller) Name(vec Vector) string {
	return c.handlers[checkVector(vec, "Name")].name
}

func (c *Controller) deliver() {
	for !c.stopped.Load() {
		bits := c.pending.Load()
		if bits == 0 {
			return
		}

		idx := 0
		for bits&(1<<idx) == 0 {
			idx++
		}
		if !c.pending.CompareAndSwap(bits, bits&^(1<<idx)) {
			continue
		}
		c.dispatch(idx)
	}
}

func (c *Controller) dispatch(idx int) {
	vec := ExternalBase + Vector(idx)
	c.counts[idx].Inc()

	entry := c.handlers[idx]
	if entry.fn == nil {
		c.unexpected.Inc()
		c.log.Warn("unexpected interrupt", "vector", fmt.Sprintf("%#x", uint8(vec)))
		return
	}

	c.level.Store(int32(Off))
	c.external.Store(true)
	c.yieldOnReturn = false

	entry.fn(&Frame{Vector: vec, Name: entry.name, ctrl: c})

	c.external.Store(false)
	if c.yieldOnReturn && c.yield != nil {
		c.yield()
	}
	c.level.Store(int32(On))
}

func checkVector(vec Vector, op string) int {
	kerror.Assert(vec >= ExternalBase && vec < ExternalBase+ExternalCount, kerror.CodeBadVector, op, "interrupt",
		fmt.Sprintf("vector %#x is not an external interrupt line", uint8(vec)))
	return int(vec - ExternalBase)
}
