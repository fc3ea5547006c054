package orders

import (
	"context"

	"courier-dispatch/internal/domain"
)

type orderDirectory interface {
	UpsertContext(ctx context.Context, oc domain.OrderContext) error
	MarkCanceled(ctx context.Context, orderID string) error
	MarkCompleted(ctx context.Context, orderID string) error
}

// Dispatcher kicks off courier selection for an order that has no active
// assignment yet.
type Dispatcher interface {
	TryReassign(ctx context.Context, orderID string) error
}
