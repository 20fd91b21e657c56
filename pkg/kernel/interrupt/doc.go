// Package interrupt models the interrupt-masking hardware of a single CPU.
//
// The kernel primitives protect their state by turning interrupts off for the
// duration of a critical section and restoring the previous level afterwards:
//
//	old := ctrl.Disable()
//	defer ctrl.SetLevel(old)
//
// External interrupt lines 0x20..0x2f can be raised from any goroutine (the
// "hardware" side). A raised line stays pending while interrupts are masked
// and is delivered at the next poll point with interrupts enabled: on
// Enable/SetLevel(On), on Poll, and while halted in Halt. Handlers run with
// interrupts off and InContext reporting true. A handler that wants the
// interrupted thread to give up the CPU calls Frame.YieldOnReturn; the yield
// happens after the handler returns and before interrupts come back on.
//
// Each line has a single pending bit, so raising a masked line twice delivers
// it once, as on a real PIC.
package interrupt
