package synch

import (
	"kernsync/pkg/kernel/thread"
	"kernsync/pkg/logging"
)

// donate raises the priority of every holder along the chain starting at
// lock to donor's priority. The walk stops at a free lock, at a holder that
// already runs at least as high, or at a lock it has already visited.
func donate(donor *thread.Thread, lock thread.LockHandle) {
	visited := make(map[thread.LockHandle]struct{})

	for lock != nil {
		if _, seen := visited[lock]; seen {
			logging.WithComponent("synch").Warn("donation cycle",
				"donor", donor.String(), "lock", lock.Name(), "chain", len(visited))
			return
		}
		visited[lock] = struct{}{}

		holder := lock.Holder()
		if holder == nil || holder.Priority >= donor.Priority {
			return
		}

		holder.Log().Debug("priority donated",
			"lock", lock.Name(), "from", holder.Priority, "to", donor.Priority, "donor", donor.Name)
		holder.Priority = donor.Priority
		holder.Donated = true

		lock = holder.BlockedOn
	}
}

// rollback recomputes t's priority as it releases l.
//
// When l had waiters and t is running on donated priority, t falls back to
// the top waiter of its most contended remaining lock, or to its base
// priority when that waiter does not outrank it. Donations that arrived
// through other locks are otherwise not tracked separately.
func (l *Lock) rollback(t *thread.Thread) {
	t.RemoveOwned(l)

	if l.sema.waiters.Empty() || !t.Donated {
		return
	}

	if len(t.OwnedLocks) == 0 {
		restoreBase(t)
		return
	}

	top, ok := mostContended(t.OwnedLocks)
	if !ok || t.BasePriority >= top.Priority {
		restoreBase(t)
		return
	}

	t.Log().Debug("priority rolled back", "lock", l.name, "from", t.Priority, "to", top.Priority)
	t.Priority = top.Priority
}

func restoreBase(t *thread.Thread) {
	t.Log().Debug("priority restored", "from", t.Priority, "to", t.BasePriority)
	t.Priority = t.BasePriority
	t.Donated = false
}

// mostContended returns the highest-priority waiter across locks. The first
// lock wins ties.
func mostContended(locks []thread.LockHandle) (*thread.Thread, bool) {
	var best *thread.Thread
	for _, lock := range locks {
		top, ok := lock.TopWaiter()
		if !ok {
			continue
		}
		if best == nil || top.Priority > best.Priority {
			best = top
		}
	}
	return best, best != nil
}
