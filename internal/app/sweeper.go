package app

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

type pendingLister interface {
	ListPendingExpiries(ctx context.Context) ([]domain.PendingExpiry, error)
}

type timeoutArmer interface {
	Arm(assignmentID string, delay time.Duration)
}

// Sweeper periodically re-arms offer deadlines from the store. In-process
// timers are lost on restart; the sweep closes that hole. Arming an already
// armed deadline is a no-op, and firing a deadline whose offer was already
// decided loses the status race, so sweeping is safe to run anywhere.
type Sweeper struct {
	store    pendingLister
	timers   timeoutArmer
	interval time.Duration
	log      logx.Logger
	now      func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(store pendingLister, timers timeoutArmer, interval time.Duration, log logx.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logx.Nop()
	}
	return &Sweeper{
		store:    store,
		timers:   timers,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	pending, err := s.store.ListPendingExpiries(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("sweep pending expiries", logx.Err(err))
		}
		return
	}

	now := s.now()
	for _, p := range pending {
		s.timers.Arm(p.AssignmentID, p.ExpiresAt.Sub(now))
	}
	if len(pending) > 0 {
		s.log.Info("re-armed pending offer deadlines", logx.Int("count", len(pending)))
	}
}
