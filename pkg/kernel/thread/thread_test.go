package thread

import (
	"testing"

	"kernsync/pkg/kerror"
)

type fakeLock struct {
	name   string
	holder *Thread
}

func (l *fakeLock) Holder() *Thread            { return l.holder }
func (l *fakeLock) TopWaiter() (*Thread, bool) { return nil, false }
func (l *fakeLock) Name() string               { return l.name }

func TestNewThread(t *testing.T) {
	th := New(3, "worker", PriDefault)

	if th.Status != Blocked {
		t.Errorf("Status = %v, want blocked", th.Status)
	}
	if th.BasePriority != PriDefault || th.Priority != PriDefault {
		t.Errorf("priorities = %d/%d, want %d", th.BasePriority, th.Priority, PriDefault)
	}
	if th.Donated || th.BlockedOn != nil || len(th.OwnedLocks) != 0 {
		t.Error("fresh thread should carry no donation state")
	}
	if th.ID.String() != "T-3" {
		t.Errorf("ID.String() = %q", th.ID.String())
	}
}

func TestNewThreadRejectsBadPriority(t *testing.T) {
	for _, p := range []int{PriMin - 1, PriMax + 1} {
		func() {
			defer func() {
				kerr, ok := recover().(*kerror.KernelError)
				if !ok || kerr.Code != kerror.CodeBadPriority {
					t.Errorf("priority %d: expected BAD_PRIORITY fatal", p)
				}
			}()
			New(1, "bad", p)
		}()
	}
}

func TestOwnedLocks(t *testing.T) {
	th := New(1, "holder", PriDefault)
	a := &fakeLock{name: "a"}
	b := &fakeLock{name: "b"}

	th.AddOwned(a)
	th.AddOwned(b)
	if len(th.OwnedLocks) != 2 || th.OwnedLocks[0] != b {
		t.Fatalf("most recent lock should be first, got %v", th.OwnedLocks)
	}
	if !th.Owns(a) || !th.Owns(b) {
		t.Error("Owns should report both locks")
	}

	if !th.RemoveOwned(a) {
		t.Error("RemoveOwned(a) = false")
	}
	if th.RemoveOwned(a) {
		t.Error("second RemoveOwned(a) should report false")
	}
	if th.Owns(a) || !th.Owns(b) {
		t.Error("only b should remain owned")
	}
}

func TestComparators(t *testing.T) {
	lo := New(1, "lo", 10)
	hi := New(2, "hi", 40)

	if ByPriority(hi, lo) >= 0 {
		t.Error("higher priority should sort first")
	}
	if ByPriority(lo, lo) != 0 {
		t.Error("equal priorities should compare equal")
	}

	lo.WakeTick, hi.WakeTick = 100, 110
	if ByWakeTick(lo, hi) >= 0 {
		t.Error("earlier wake tick should sort first")
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		Running: "running",
		Ready:   "ready",
		Blocked: "blocked",
		Dying:   "dying",
		9:       "status(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
