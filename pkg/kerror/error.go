// Package kerror defines the structured error type used across kernsync.
//
// Contract violations (re-acquiring a held lock, sleeping in an interrupt
// handler, nil handles) are unrecoverable: they are raised with Fatal, which
// panics with a *KernelError. The simulated CPU recovers the panic on the
// faulting thread and halts the machine with it, the way a kernel panic would.
// Configuration problems are returned as ordinary errors.
package kerror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryContract represents a violated precondition of a kernel
	// primitive. These are programming errors and always halt the machine.
	ErrCategoryContract ErrorCategory = iota

	// ErrCategoryConfig represents an invalid machine or device configuration.
	// Examples: timer frequency outside 19..1000 Hz, zero time slice.
	ErrCategoryConfig

	// ErrCategoryDeadlock represents a machine on which no thread is runnable
	// and nothing can ever make one runnable again.
	ErrCategoryDeadlock

	// ErrCategorySystem represents foreign errors wrapped with kernel context,
	// including non-kernel panics recovered from simulated threads.
	ErrCategorySystem
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryContract:
		return "contract"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryDeadlock:
		return "deadlock"
	default:
		return "system"
	}
}

// Error codes raised by the kernel packages.
const (
	CodeNilHandle          = "NIL_HANDLE"
	CodeInterruptContext   = "INTERRUPT_CONTEXT"
	CodeInterruptsDisabled = "INTERRUPTS_DISABLED"
	CodeInterruptsEnabled  = "INTERRUPTS_ENABLED"
	CodeLockHeld           = "LOCK_ALREADY_HELD"
	CodeLockNotHeld        = "LOCK_NOT_HELD"
	CodeBadThreadState     = "BAD_THREAD_STATE"
	CodeBadPriority        = "BAD_PRIORITY"
	CodeBadVector          = "BAD_VECTOR"
	CodeNotBooted          = "NOT_BOOTED"
	CodeDeadlock           = "DEADLOCK"
	CodeTimerFrequency     = "TIMER_FREQUENCY"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeThreadPanic        = "THREAD_PANIC"
)

// KernelError represents a structured kernel error with rich context information.
type KernelError struct {
	// Code is a unique identifier for this error type (e.g., "LOCK_NOT_HELD").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Hint suggests how the caller might fix the problem.
	Hint string

	// Operation identifies the primitive that was executing, e.g. "Lock.Acquire".
	Operation string

	// Component identifies the subsystem, e.g. "synch", "timer", "sched".
	Component string

	// Cause is the underlying error, if any.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new KernelError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *KernelError {
	return &KernelError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with kernel context information.
// If the error is already a KernelError, the existing error is enriched with
// operation and component context (only where not already set).
func Wrap(err error, code, operation, component string) *KernelError {
	if err == nil {
		return nil
	}

	var kerr *KernelError
	if errors.As(err, &kerr) {
		if kerr.Operation == "" {
			kerr.Operation = operation
		}
		if kerr.Component == "" {
			kerr.Component = component
		}
		return kerr
	}

	return &KernelError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// Fatal panics with a contract-violation KernelError. It never returns.
func Fatal(code, operation, component, message string) {
	err := New(ErrCategoryContract, code, message)
	err.Operation = operation
	err.Component = component
	panic(err)
}

// Assert calls Fatal when cond is false.
func Assert(cond bool, code, operation, component, message string) {
	if !cond {
		Fatal(code, operation, component, message)
	}
}

// FromPanic converts a recovered panic value into a KernelError.
func FromPanic(r any) *KernelError {
	switch v := r.(type) {
	case *KernelError:
		return v
	case error:
		return Wrap(v, CodeThreadPanic, "", "")
	default:
		err := New(ErrCategorySystem, CodeThreadPanic, fmt.Sprint(v))
		return err
	}
}

// IsCode reports whether err is a KernelError carrying code.
func IsCode(err error, code string) bool {
	var kerr *KernelError
	return errors.As(err, &kerr) && kerr.Code == code
}

func (e *KernelError) WithDetail(format string, args ...any) *KernelError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

func (e *KernelError) WithHint(hint string) *KernelError {
	e.Hint = hint
	return e
}

// captureStack skips captureStack, New/Wrap, and the immediate caller.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *KernelError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *KernelError) Unwrap() error {
	return e.Cause
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *KernelError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}
