package logging

import (
	"log/slog"
)

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("timer")
//	log.Info("calibrated", "loops_per_tick", n)
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithThread creates a logger with thread context.
//
// Example:
//
//	log := logging.WithThread(t.ID, t.Name)
//	log.Debug("blocked", "on", "sema")
func WithThread(id int64, name string) *slog.Logger {
	return GetLogger().With("thread_id", id, "thread", name)
}

// WithLock creates a logger with lock context.
func WithLock(lockName string) *slog.Logger {
	return GetLogger().With("component", "synch", "lock", lockName)
}

// WithTick creates a logger stamped with the timer tick it was created at.
func WithTick(tick int64) *slog.Logger {
	return GetLogger().With("tick", tick)
}

// WithError creates a logger with error context.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
