package orders

import (
	"context"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Processor applies order stream events to the dispatch pool. Ready orders
// get a dispatch attempt right away; canceled and completed orders leave
// the pool.
type Processor struct {
	orders     orderDirectory
	dispatcher Dispatcher
	log        logx.Logger
	factory    *actionFactory
}

// NewProcessor creates a new orders.Processor.
func NewProcessor(orders orderDirectory, dispatcher Dispatcher, log logx.Logger) *Processor {
	p := &Processor{
		orders:     orders,
		dispatcher: dispatcher,
		log:        log,
	}
	p.factory = newActionFactory(p.onReady, p.onCanceled, p.onCompleted)
	return p
}

// Handle processes a single order event. Unknown statuses are skipped.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if p.factory == nil {
		return nil
	}
	fn, ok := p.factory.get(e.Status)
	if !ok {
		p.log.Debug("order event skipped",
			logx.String("order_id", e.OrderID),
			logx.String("status", e.Status),
		)
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onReady(ctx context.Context, e Event) error {
	oc := domain.OrderContext{
		OrderID:  e.OrderID,
		Priority: e.Priority,
		Pickup:   domain.Point{Lat: e.PickupLat, Lng: e.PickupLng},
		Dropoff:  domain.Point{Lat: e.DropoffLat, Lng: e.DropoffLng},
	}
	if !oc.Pickup.ValidCoordinate() || !oc.Dropoff.ValidCoordinate() {
		p.log.Warn("order event with bad coordinates dropped",
			logx.String("order_id", e.OrderID))
		return nil
	}

	if err := p.orders.UpsertContext(ctx, oc); err != nil {
		return err
	}

	err := p.dispatcher.TryReassign(ctx, e.OrderID)
	if apperr.Expected(err) {
		// nothing to retry: the order already has an active assignment
		// or left the pool between upsert and dispatch
		p.log.Info("initial dispatch skipped",
			logx.String("order_id", e.OrderID),
			logx.Err(err),
		)
		return nil
	}
	return err
}

func (p *Processor) onCanceled(ctx context.Context, e Event) error {
	return p.orders.MarkCanceled(ctx, e.OrderID)
}

func (p *Processor) onCompleted(ctx context.Context, e Event) error {
	return p.orders.MarkCompleted(ctx, e.OrderID)
}
