package handlers

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/assignment"
	"courier-dispatch/internal/service/matching"
)

type dispatchUsecase interface {
	Create(ctx context.Context, courierID int64, oc domain.OrderContext, timeout time.Duration) (*domain.Assignment, error)
	Accept(ctx context.Context, assignmentID string, courierID int64) error
	Reject(ctx context.Context, assignmentID string, courierID int64, reason string) error
	UpdateStatus(ctx context.Context, assignmentID string, to domain.AssignmentStatus, extra assignment.Extra) error
	UpdateCourierLocation(ctx context.Context, courierID int64, p domain.Point, meta domain.LocationMeta) error
	ActiveByCourier(ctx context.Context, courierID int64) ([]domain.Assignment, error)
	Get(ctx context.Context, assignmentID string) (*domain.Assignment, error)
}

// NewDispatchUsecase wires an assignment Service into a dispatchUsecase.
func NewDispatchUsecase(svc *assignment.Service) dispatchUsecase {
	return svc
}

type matchUsecase interface {
	FindOptimalCouriers(ctx context.Context, pickup domain.Point, criteria domain.MatchCriteria) ([]domain.RankedCourier, error)
}

// NewMatchUsecase wires a matching Service into a matchUsecase.
func NewMatchUsecase(svc *matching.Service) matchUsecase {
	return svc
}
