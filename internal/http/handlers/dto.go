package handlers

import "courier-dispatch/internal/domain"

type pointDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type orderContextDTO struct {
	OrderID  string   `json:"order_id"`
	Pickup   pointDTO `json:"pickup"`
	Dropoff  pointDTO `json:"dropoff"`
	Priority int      `json:"priority"`
}

type createAssignmentRequest struct {
	CourierID      int64           `json:"courier_id"`
	Order          orderContextDTO `json:"order"`
	TimeoutSeconds int             `json:"timeout_seconds,omitempty"`
}

type acceptRequest struct {
	CourierID int64 `json:"courier_id"`
}

type rejectRequest struct {
	CourierID int64  `json:"courier_id"`
	Reason    string `json:"reason,omitempty"`
}

type statusUpdateRequest struct {
	Status            domain.AssignmentStatus `json:"status"`
	Reason            string                  `json:"reason,omitempty"`
	ActualDistanceKm  *float64                `json:"actual_distance_km,omitempty"`
	ActualDurationSec *int64                  `json:"actual_duration_seconds,omitempty"`
	ActualEarning     *int64                  `json:"actual_earning,omitempty"`
}

type locationUpdateRequest struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	AccuracyM  *float64 `json:"accuracy_m,omitempty"`
	SpeedKmh   *float64 `json:"speed_kmh,omitempty"`
	HeadingDeg *float64 `json:"heading_deg,omitempty"`
}

type matchRequest struct {
	Pickup          pointDTO            `json:"pickup"`
	Priority        domain.RankPriority `json:"priority,omitempty"`
	MaxResults      int                 `json:"max_results,omitempty"`
	RadiusKm        float64             `json:"radius_km,omitempty"`
	ExcludeCouriers []int64             `json:"exclude_couriers,omitempty"`
}

type assignmentDTO struct {
	ID                string                  `json:"id"`
	OrderID           string                  `json:"order_id"`
	CourierID         int64                   `json:"courier_id"`
	Status            domain.AssignmentStatus `json:"status"`
	Priority          int                     `json:"priority"`
	Pickup            pointDTO                `json:"pickup"`
	Dropoff           pointDTO                `json:"dropoff"`
	AssignedAt        string                  `json:"assigned_at"`
	AcceptedAt        *string                 `json:"accepted_at,omitempty"`
	ExpiresAt         string                  `json:"expires_at"`
	EstDistanceKm     float64                 `json:"estimated_distance_km"`
	EstDurationSec    int64                   `json:"estimated_duration_seconds"`
	EstEarning        int64                   `json:"estimated_earning"`
	ActualDistanceKm  *float64                `json:"actual_distance_km,omitempty"`
	ActualDurationSec *int64                  `json:"actual_duration_seconds,omitempty"`
	ActualEarning     *int64                  `json:"actual_earning,omitempty"`
	Reason            *string                 `json:"reason,omitempty"`
}

type rankedCourierDTO struct {
	CourierID  int64   `json:"courier_id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
	Score      float64 `json:"score"`
	Rating     float64 `json:"rating"`
	ActiveLoad int     `json:"active_load"`
}
