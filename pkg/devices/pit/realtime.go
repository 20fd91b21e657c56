package pit

import (
	"context"
	"log/slog"
	"time"

	"kernsync/pkg/kernel/interrupt"
	"kernsync/pkg/kerror"
	"kernsync/pkg/logging"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Realtime raises IRQ 0 from a wall-clock ticker.
type Realtime struct {
	ctrl   *interrupt.Controller
	period time.Duration

	raised  atomic.Int64
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	log *slog.Logger
}

var _ Clock = (*Realtime)(nil)

// NewRealtime creates a clock interrupting freq times per second.
func NewRealtime(ctrl *interrupt.Controller, freq int) (*Realtime, error) {
	if ctrl == nil {
		return nil, kerror.New(kerror.ErrCategoryConfig, kerror.CodeNilHandle, "nil interrupt controller")
	}
	if err := validate(freq); err != nil {
		return nil, err
	}

	return &Realtime{
		ctrl:   ctrl,
		period: Period(freq),
		log:    logging.WithComponent("pit").With("mode", ModeRealtime),
	}, nil
}

// Start launches the ticker goroutine.
func (r *Realtime) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.group, ctx = errgroup.WithContext(ctx)
	r.group.Go(func() error {
		ticker := time.NewTicker(r.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.raised.Inc()
				r.ctrl.Raise(interrupt.Timer)
			}
		}
	})
	r.log.Debug("started", "period", r.period)
}

// Stop stops the ticker goroutine and waits for it to exit.
func (r *Realtime) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.cancel()
	if err := r.group.Wait(); err != nil {
		r.log.Warn("ticker stopped with error", "error", err)
	}
}

// Mode returns ModeRealtime.
func (r *Realtime) Mode() string {
	return ModeRealtime
}

// Period returns the interval between interrupts.
func (r *Realtime) Period() time.Duration {
	return r.period
}

// Raised returns the number of timer interrupts raised.
func (r *Realtime) Raised() int64 {
	return r.raised.Load()
}
