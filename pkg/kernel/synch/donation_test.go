package synch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kernsync/pkg/kernel/sched"
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/logging"
)

func TestAcquireRecordsBlockedOn(t *testing.T) {
	mustBoot(t, func(u *sched.Uniprocessor) {
		l := NewLock(u, "a")
		l.Acquire()
		main := u.Current()
		if main.BlockedOn != nil {
			t.Errorf("BlockedOn after uncontended acquire = %v, want nil", main.BlockedOn)
		}

		var afterAcquire thread.LockHandle = l
		high := u.Spawn("high", thread.PriDefault+10, func() {
			l.Acquire()
			afterAcquire = u.Current().BlockedOn
			l.Release()
		})
		if high.BlockedOn != l {
			t.Errorf("waiter BlockedOn = %v, want lock a", high.BlockedOn)
		}

		l.Release()
		if afterAcquire != nil {
			t.Errorf("BlockedOn after contended acquire = %v, want nil", afterAcquire)
		}
	})
}

func TestDonationStopsOnCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synch.log")
	logging.Close()
	if err := logging.Init(logging.Config{Level: logging.LevelWarn, OutputPath: path, Format: "text"}); err != nil {
		t.Fatalf("logging.Init: %v", err)
	}
	t.Cleanup(func() { logging.Close() })

	// a holds la and waits on lb; b holds lb and waits on la.
	a := thread.New(1, "a", 10)
	b := thread.New(2, "b", 10)
	la := &Lock{name: "la", holder: a}
	lb := &Lock{name: "lb", holder: b}
	a.BlockedOn = lb
	b.BlockedOn = la

	donor := thread.New(3, "donor", 20)
	donate(donor, la)

	for _, th := range []*thread.Thread{a, b} {
		if th.Priority != 20 || !th.Donated {
			t.Errorf("%s priority = %d (donated %v), want 20 donated", th.Name, th.Priority, th.Donated)
		}
	}

	if err := logging.Close(); err != nil {
		t.Fatalf("logging.Close: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(out), "donation cycle") {
		t.Errorf("log does not report the cycle:\n%s", out)
	}
}
