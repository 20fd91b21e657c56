// Package thread defines the kernel thread record shared by the scheduler,
// the synchronization primitives and the timer.
//
// The record carries the priority-donation state: the base priority, the
// effective priority, whether a donation is in effect, the lock the thread is
// blocked on and the locks it owns. Locks are referenced through LockHandle so
// that this package does not depend on the package that implements them.
package thread

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"
)

// Thread priorities.
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
)

// ID identifies a thread within one machine.
type ID int64

func (id ID) String() string {
	return fmt.Sprintf("T-%d", int64(id))
}

// Status is a thread's scheduling state.
type Status int

const (
	Running Status = iota
	Ready
	Blocked
	Dying
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Dying:
		return "dying"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LockHandle is the view of a lock needed to walk donation chains.
type LockHandle interface {
	// Holder returns the owning thread, or nil.
	Holder() *Thread
	// TopWaiter returns the highest-priority thread waiting for the lock.
	TopWaiter() (*Thread, bool)
	// Name returns the lock's name for diagnostics.
	Name() string
}

// Thread is a kernel thread.
type Thread struct {
	ID     ID
	Name   string
	Status Status

	// BasePriority is the priority absent donation; Priority is the
	// effective priority. Priority >= BasePriority at all times.
	BasePriority int
	Priority     int
	Donated      bool

	// BlockedOn is the lock the thread is trying to acquire, or nil.
	BlockedOn LockHandle
	// OwnedLocks holds the locks currently held, most recent first.
	OwnedLocks []LockHandle

	// WakeTick is the absolute tick at which a sleeping thread is due.
	WakeTick int64

	log *slog.Logger
}

// New creates a thread record in the Blocked state, the state a thread is
// created in before it is first made ready.
func New(id ID, name string, priority int) *Thread {
	kerror.Assert(ValidPriority(priority), kerror.CodeBadPriority, "thread.New", "thread",
		fmt.Sprintf("priority %d outside [%d, %d]", priority, PriMin, PriMax))

	return &Thread{
		ID:           id,
		Name:         name,
		Status:       Blocked,
		BasePriority: priority,
		Priority:     priority,
	}
}

// ValidPriority reports whether p is within [PriMin, PriMax].
func ValidPriority(p int) bool {
	return p >= PriMin && p <= PriMax
}

func (t *Thread) String() string {
	return fmt.Sprintf("%s(%s, pri %d)", t.Name, t.ID, t.Priority)
}

// Log returns a logger carrying the thread's identity.
func (t *Thread) Log() *slog.Logger {
	if t.log == nil {
		t.log = logging.WithThread(int64(t.ID), t.Name)
	}
	return t.log
}

// Owns reports whether l is among the thread's owned locks.
func (t *Thread) Owns(l LockHandle) bool {
	return slices.Contains(t.OwnedLocks, l)
}

// AddOwned records l as owned, at the front of the owned set.
func (t *Thread) AddOwned(l LockHandle) {
	t.OwnedLocks = slices.Insert(t.OwnedLocks, 0, l)
}

// RemoveOwned drops l from the owned set and reports whether it was there.
func (t *Thread) RemoveOwned(l LockHandle) bool {
	i := slices.Index(t.OwnedLocks, l)
	if i < 0 {
		return false
	}
	t.OwnedLocks = slices.Delete(t.OwnedLocks, i, i+1)
	return true
}

// ByPriority orders threads by descending effective priority.
func ByPriority(a, b *Thread) int {
	return cmp.Compare(b.Priority, a.Priority)
}

// ByWakeTick orders threads by ascending wake tick.
func ByWakeTick(a, b *Thread) int {
	return cmp.Compare(a.WakeTick, b.WakeTick)
}
