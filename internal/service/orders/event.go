package orders

import "time"

// Event is a single order event from the platform stream. Coordinates ride
// along so the engine can dispatch without calling back into the platform.
type Event struct {
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	Priority   int       `json:"priority"`
	PickupLat  float64   `json:"pickup_lat"`
	PickupLng  float64   `json:"pickup_lng"`
	DropoffLat float64   `json:"dropoff_lat"`
	DropoffLng float64   `json:"dropoff_lng"`
	CreatedAt  time.Time `json:"created_at"`
}
