package domain

import "time"

// AssignmentStatus represents the lifecycle state of an assignment.
type AssignmentStatus string

// List of possible assignment statuses
const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentInTransit AssignmentStatus = "in_transit"
	AssignmentDelivered AssignmentStatus = "delivered"
	AssignmentFailed    AssignmentStatus = "failed"
	AssignmentRejected  AssignmentStatus = "rejected"
	AssignmentTimedOut  AssignmentStatus = "timed_out"
)

// allowedTransitions encodes the assignment state machine. Terminal states
// have no outgoing edges.
var allowedTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentAssigned: {AssignmentAccepted, AssignmentRejected, AssignmentTimedOut},
	AssignmentAccepted: {AssignmentInTransit},
	AssignmentInTransit: {
		AssignmentDelivered, AssignmentFailed,
	},
}

// CanTransition reports whether from → to is a legal edge of the state machine.
func CanTransition(from, to AssignmentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s AssignmentStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Active reports whether the status counts toward the one-active-per-order
// invariant. The active statuses are exactly the valid non-terminal ones.
func (s AssignmentStatus) Active() bool {
	return s.Valid() && !s.Terminal()
}

// Valid checks if the AssignmentStatus is valid
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentAssigned, AssignmentAccepted, AssignmentInTransit,
		AssignmentDelivered, AssignmentFailed, AssignmentRejected, AssignmentTimedOut:
		return true
	default:
		return false
	}
}

// Assignment is one offer of a specific order to a specific courier, with its
// own lifecycle independent of other offers for the same order. Terminal rows
// are retained for audit and are never deleted.
type Assignment struct {
	ID          string
	OrderID     string
	CourierID   int64
	ShiftID     *int64
	Status      AssignmentStatus
	Priority    int
	Pickup      Point
	Dropoff     Point
	CourierPos  *Point
	AssignedAt  time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
	EstDistance float64
	EstDuration time.Duration
	EstEarning  int64
	ActDistance *float64
	ActDuration *time.Duration
	ActEarning  *int64
	Reason      *string
	Metadata    map[string]string
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// ValidCoordinate reports whether the point is within coordinate ranges.
func (p Point) ValidCoordinate() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// OrderContext carries the order attributes the engine needs to create an
// assignment. Supplied by the order context provider, read-only here.
type OrderContext struct {
	OrderID  string
	Pickup   Point
	Dropoff  Point
	Priority int
}

// StatusPatch carries the guards and extra fields of a conditional status
// update. Nil guard fields are not applied.
type StatusPatch struct {
	Now            time.Time
	CourierID      *int64     // ownership guard: row must belong to this courier
	NotAfter       *time.Time // expiry guard: row must not be past expires_at
	Reason         *string
	ActDistanceKm  *float64
	ActDurationSec *int64
	ActEarning     *int64
}

// PendingExpiry is an armed offer deadline recovered from the store.
type PendingExpiry struct {
	AssignmentID string
	ExpiresAt    time.Time
}
