package pit

import (
	"log/slog"

	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"
)

// Virtual is a cycle-driven clock. It runs entirely on the goroutine that
// holds the simulated CPU.
type Virtual struct {
	ctrl          *interrupt.Controller
	cyclesPerTick int64

	cycles  int64
	skipped int64
	raised  int64

	log *slog.Logger
}

var _ Clock = (*Virtual)(nil)

// NewVirtual creates a clock raising IRQ 0 every cyclesPerTick poll points.
func NewVirtual(ctrl *interrupt.Controller, cyclesPerTick int64) (*Virtual, error) {
	if ctrl == nil {
		return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeNilHandle, "nil interrupt controller")
	}
	if cyclesPerTick <= 0 {
		return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeInvalidConfig, "cycles per tick must be positive").
			WithDetail("got %d", cyclesPerTick)
	}

	return &Virtual{
		ctrl:          ctrl,
		cyclesPerTick: cyclesPerTick,
		log:           logging.WithComponent("pit").With("mode", ModeVirtual),
	}, nil
}

// Start hooks the clock into the controller's poll and halt points.
func (v *Virtual) Start() {
	v.ctrl.SetPollHook(v.cycle)
	v.ctrl.SetHaltHook(v.skip)
	v.log.Debug("started", "cycles_per_tick", v.cyclesPerTick)
}

// Stop unhooks the clock.
func (v *Virtual) Stop() {
	v.ctrl.SetPollHook(nil)
	v.ctrl.SetHaltHook(nil)
}

// Mode returns ModeVirtual.
func (v *Virtual) Mode() string {
	return ModeVirtual
}

// Cycles returns the number of cycles elapsed, skipped idle cycles included.
func (v *Virtual) Cycles() int64 {
	return v.cycles
}

// Skipped returns the number of cycles fast-forwarded while halted.
func (v *Virtual) Skipped() int64 {
	return v.skipped
}

// Raised returns the number of timer interrupts raised.
func (v *Virtual) Raised() int64 {
	return v.raised
}

// CyclesPerTick returns the tick length in cycles.
func (v *Virtual) CyclesPerTick() int64 {
	return v.cyclesPerTick
}

func (v *Virtual) cycle() {
	v.cycles++
	if v.cycles%v.cyclesPerTick == 0 {
		v.raise()
	}
}

// skip advances a halted CPU to the next tick boundary.
func (v *Virtual) skip() {
	next := (v.cycles/v.cyclesPerTick + 1) * v.cyclesPerTick
	v.skipped += next - v.cycles
	v.cycles = next
	v.raise()
}

func (v *Virtual) raise() {
	v.raised++
	v.ctrl.Raise(interrupt.Timer)
}
