// Package dispatchtx declares the transactional repository surface the
// assignment service uses when creating an assignment. Kept separate so the
// service and repository packages can share it without an import cycle.
package dispatchtx

import (
	"context"

	"courier-dispatch/internal/domain"
)

// Repository is the view of the store available inside one transaction.
type Repository interface {
	// GetCourierForUpdate loads a courier read model and locks its row for
	// the duration of the transaction. Returns nil when the courier does
	// not exist.
	GetCourierForUpdate(ctx context.Context, courierID int64) (*domain.Courier, error)
	// HasActiveByOrder reports whether the order already has an assignment
	// in a non-terminal status.
	HasActiveByOrder(ctx context.Context, orderID string) (bool, error)
	// InsertAssignment persists a new assignment row.
	InsertAssignment(ctx context.Context, a *domain.Assignment) error
}
