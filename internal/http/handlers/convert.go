package handlers

import (
	"time"

	"courier-dispatch/internal/domain"
)

func (r createAssignmentRequest) toModel() (int64, domain.OrderContext, time.Duration) {
	oc := domain.OrderContext{
		OrderID:  r.Order.OrderID,
		Pickup:   domain.Point{Lat: r.Order.Pickup.Lat, Lng: r.Order.Pickup.Lng},
		Dropoff:  domain.Point{Lat: r.Order.Dropoff.Lat, Lng: r.Order.Dropoff.Lng},
		Priority: r.Order.Priority,
	}
	return r.CourierID, oc, time.Duration(r.TimeoutSeconds) * time.Second
}

func (r matchRequest) toModel() (domain.Point, domain.MatchCriteria) {
	pickup := domain.Point{Lat: r.Pickup.Lat, Lng: r.Pickup.Lng}
	return pickup, domain.MatchCriteria{
		Priority:        r.Priority,
		MaxResults:      r.MaxResults,
		RadiusKm:        r.RadiusKm,
		ExcludeCouriers: r.ExcludeCouriers,
	}
}

func modelToResponse(a domain.Assignment) assignmentDTO {
	dto := assignmentDTO{
		ID:             a.ID,
		OrderID:        a.OrderID,
		CourierID:      a.CourierID,
		Status:         a.Status,
		Priority:       a.Priority,
		Pickup:         pointDTO{Lat: a.Pickup.Lat, Lng: a.Pickup.Lng},
		Dropoff:        pointDTO{Lat: a.Dropoff.Lat, Lng: a.Dropoff.Lng},
		AssignedAt:     a.AssignedAt.UTC().Format(time.RFC3339),
		ExpiresAt:      a.ExpiresAt.UTC().Format(time.RFC3339),
		EstDistanceKm:  a.EstDistance,
		EstDurationSec: int64(a.EstDuration / time.Second),
		EstEarning:     a.EstEarning,
		Reason:         a.Reason,
	}
	if a.AcceptedAt != nil {
		s := a.AcceptedAt.UTC().Format(time.RFC3339)
		dto.AcceptedAt = &s
	}
	dto.ActualDistanceKm = a.ActDistance
	if a.ActDuration != nil {
		sec := int64(*a.ActDuration / time.Second)
		dto.ActualDurationSec = &sec
	}
	dto.ActualEarning = a.ActEarning
	return dto
}

func modelsToResponse(list []domain.Assignment) []assignmentDTO {
	out := make([]assignmentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, modelToResponse(a))
	}
	return out
}

func rankedToResponse(list []domain.RankedCourier) []rankedCourierDTO {
	out := make([]rankedCourierDTO, 0, len(list))
	for _, rc := range list {
		out = append(out, rankedCourierDTO{
			CourierID:  rc.Courier.ID,
			Name:       rc.Courier.Name,
			DistanceKm: rc.DistanceKm,
			Score:      rc.Score,
			Rating:     rc.Courier.Rating,
			ActiveLoad: rc.Courier.ActiveLoad,
		})
	}
	return out
}
