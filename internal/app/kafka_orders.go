package app

import (
	"context"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

// makeOrdersHandler adapts the orders.Processor to the consumer contract.
// Validation failures cannot succeed on replay, so they come back permanent.
func makeOrdersHandler(p *orders.Processor) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		err := p.Handle(ctx, event)
		if apperr.Expected(err) {
			return kafka.Permanent(err)
		}
		return err
	}
}
