// Package logging provides a process-wide structured logger for kernsync.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. The scheduler,
// the synchronization primitives and the timer obtain their loggers through
// this package, so that log level and output destination are controlled from
// a single place (the command-line flags in main).
//
// # Initialisation
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// InitDefault writes WARN-level logs to stderr. Simulated machines log every
// block, wake-up and donation at DEBUG, which is far too chatty for a
// default.
//
// # Context helpers
//
//	log := logging.WithComponent("sched") // adds component field
//	log := logging.WithThread(id, name)   // adds thread_id and thread fields
//	log := logging.WithLock(name)         // adds component and lock fields
//	log := logging.WithTick(ticks)        // adds tick field
package logging
