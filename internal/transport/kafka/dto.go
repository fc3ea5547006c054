package kafka

import (
	"strings"
	"time"

	"courier-dispatch/internal/service/orders"
)

// EventDTO is the wire shape of a single order event.
type EventDTO struct {
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	Priority   int       `json:"priority"`
	PickupLat  float64   `json:"pickup_lat"`
	PickupLng  float64   `json:"pickup_lng"`
	DropoffLat float64   `json:"dropoff_lat"`
	DropoffLng float64   `json:"dropoff_lng"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToDomain converts EventDTO to orders.Event.
func ToDomain(dto EventDTO) orders.Event {
	return orders.Event{
		OrderID:    strings.TrimSpace(dto.OrderID),
		Status:     strings.TrimSpace(dto.Status),
		Priority:   dto.Priority,
		PickupLat:  dto.PickupLat,
		PickupLng:  dto.PickupLng,
		DropoffLat: dto.DropoffLat,
		DropoffLng: dto.DropoffLng,
		CreatedAt:  dto.CreatedAt,
	}
}
