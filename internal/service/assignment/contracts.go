package assignment

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/gateway/notify"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/service/location"
)

// assignmentStore defines the storage operations required by the lifecycle
// manager and the reassignment coordinator.
type assignmentStore interface {
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
	Get(ctx context.Context, id string) (*domain.Assignment, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.AssignmentStatus, p domain.StatusPatch) (bool, error)
	HasActiveByOrder(ctx context.Context, orderID string) (bool, error)
	LatestByOrder(ctx context.Context, orderID string) (*domain.Assignment, error)
	TriedCouriers(ctx context.Context, orderID string) ([]int64, error)
	CountByOrder(ctx context.Context, orderID string) (int, error)
	ListActiveByCourier(ctx context.Context, courierID int64) ([]domain.Assignment, error)
	UpdateCourierPosition(ctx context.Context, courierID int64, p domain.Point) error
}

// orderDirectory supplies order dispatch context and tracks the dispatch pool.
type orderDirectory interface {
	GetContext(ctx context.Context, orderID string) (*domain.OrderContext, error)
	ListUnassignedReady(ctx context.Context, limit int) ([]domain.OrderContext, error)
	MarkAssigned(ctx context.Context, orderID string) error
	MarkReady(ctx context.Context, orderID string) error
}

// courierDirectory supplies courier read models outside of transactions.
type courierDirectory interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
}

// locationCache is the position store used for estimates and auto-assignment.
type locationCache interface {
	Record(ctx context.Context, u location.Update) bool
	Get(ctx context.Context, courierID int64) *domain.CourierLocation
}

// matcher ranks eligible couriers near a pickup point.
type matcher interface {
	FindOptimalCouriers(ctx context.Context, pickup domain.Point, criteria domain.MatchCriteria) ([]domain.RankedCourier, error)
}

// timeoutScheduler arms one-shot offer deadlines.
type timeoutScheduler interface {
	Arm(assignmentID string, delay time.Duration)
	Disarm(assignmentID string)
}

// notifier publishes lifecycle events, best effort.
type notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// reassigner reacts to an order losing its active assignment.
type reassigner interface {
	TryReassign(ctx context.Context, orderID string) error
}
