package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/gateway/notify"
	"courier-dispatch/internal/logx"
)

// Coordinator re-dispatches an order after its assignment ended in rejection
// or timeout. Attempts are bounded: past the cap the order escalates to
// manual dispatch instead of cycling through the same zone forever.
type Coordinator struct {
	store    assignmentStore
	orders   orderDirectory
	matcher  matcher
	creator  assignmentCreator
	notifier notifier
	log      logx.Logger

	reassignments prometheus.Counter
	maxAttempts   int
}

// assignmentCreator is the slice of the lifecycle manager the coordinator
// needs.
type assignmentCreator interface {
	Create(ctx context.Context, courierID int64, oc domain.OrderContext, timeout time.Duration) (*domain.Assignment, error)
}

// NewCoordinator creates a reassignment Coordinator.
func NewCoordinator(store assignmentStore, orders orderDirectory, m matcher, creator assignmentCreator, n notifier, log logx.Logger, reassignments prometheus.Counter, maxAttempts int) *Coordinator {
	if log == nil {
		log = logx.Nop()
	}
	if n == nil {
		n = notify.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Coordinator{
		store:         store,
		orders:        orders,
		matcher:       m,
		creator:       creator,
		notifier:      n,
		log:           log,
		reassignments: reassignments,
		maxAttempts:   maxAttempts,
	}
}

// TryReassign creates a fresh assignment for the order, excluding every
// courier already tried. It is a guarded no-op when the order still has an
// active assignment, so concurrent reject and timeout handlers cannot
// double-dispatch. Running out of candidates ends the chain quietly: the
// order returns to the dispatch pool.
func (c *Coordinator) TryReassign(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apperr.ErrInvalid
	}

	active, err := c.store.HasActiveByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if active {
		return nil
	}

	total, err := c.store.CountByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	// total includes the original assignment; reassignments are the rest
	if total-1 >= c.maxAttempts {
		c.escalate(ctx, orderID, total-1)
		return nil
	}

	oc, err := c.orderContext(ctx, orderID)
	if err != nil {
		return err
	}

	tried, err := c.store.TriedCouriers(ctx, orderID)
	if err != nil {
		return err
	}

	candidates, err := c.matcher.FindOptimalCouriers(ctx, oc.Pickup,
		domain.MatchCriteria{ExcludeCouriers: tried})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		c.log.Info("no candidates for reassignment", logx.String("order_id", orderID))
		if err := c.orders.MarkReady(ctx, orderID); err != nil {
			c.log.Warn("return order to pool", logx.String("order_id", orderID), logx.Err(err))
		}
		return nil
	}

	if c.reassignments != nil {
		c.reassignments.Inc()
	}

	for _, cand := range candidates {
		_, err := c.creator.Create(ctx, cand.Courier.ID, *oc, 0)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrConflict) {
			// another path assigned the order first
			return nil
		}
		if errors.Is(err, apperr.ErrIneligible) {
			// eligibility changed between ranking and locking the row
			continue
		}
		return err
	}
	return nil
}

// orderContext loads the order's dispatch context, falling back to the
// coordinates recorded on the most recent assignment when the order row is
// gone.
func (c *Coordinator) orderContext(ctx context.Context, orderID string) (*domain.OrderContext, error) {
	oc, err := c.orders.GetContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if oc != nil {
		return oc, nil
	}

	last, err := c.store.LatestByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, apperr.ErrNotFound
	}
	return &domain.OrderContext{
		OrderID:  orderID,
		Pickup:   last.Pickup,
		Dropoff:  last.Dropoff,
		Priority: last.Priority,
	}, nil
}

// escalate flags the order for manual dispatch after exhausting automatic
// attempts.
func (c *Coordinator) escalate(ctx context.Context, orderID string, attempts int) {
	c.log.Warn("reassignment attempts exhausted",
		logx.String("order_id", orderID),
		logx.Int("attempts", attempts),
	)
	if err := c.orders.MarkReady(ctx, orderID); err != nil {
		c.log.Warn("return order to pool", logx.String("order_id", orderID), logx.Err(err))
	}
	if err := c.notifier.Notify(ctx, notify.Event{
		Channel: notify.ChannelAdmin,
		Type:    notify.EventDispatchExhausted,
		OrderID: orderID,
		At:      time.Now().UTC(),
	}); err != nil {
		c.log.Warn("publish escalation event", logx.String("order_id", orderID), logx.Err(err))
	}
}
