package matching

import (
	"context"

	"courier-dispatch/internal/domain"
)

// zoneResolver maps a geographic point to the zone covering it.
type zoneResolver interface {
	ZoneForPoint(ctx context.Context, p domain.Point) (string, error)
}

// courierDirectory supplies the read models used for eligibility and ranking.
type courierDirectory interface {
	ListByIDs(ctx context.Context, ids []int64) ([]domain.Courier, error)
}

// locationIndex is the position lookup backed by the location cache.
type locationIndex interface {
	NearestInZone(ctx context.Context, zone string, origin domain.Point, radiusKm float64, limit int, exclude []int64) []domain.NearbyCourier
}
