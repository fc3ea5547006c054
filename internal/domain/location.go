package domain

import "time"

// CourierLocation is the last known position of a courier. At most one record
// exists per courier; it is overwritten on every update and disappears on TTL
// expiry or explicit removal.
type CourierLocation struct {
	CourierID  int64
	Point      Point
	AccuracyM  *float64
	SpeedKmh   *float64
	HeadingDeg *float64
	RecordedAt time.Time
	ExpiresAt  time.Time
}

// LocationMeta is the optional telemetry a courier device reports alongside
// a position. Nil fields were simply not reported.
type LocationMeta struct {
	AccuracyM  *float64
	SpeedKmh   *float64
	HeadingDeg *float64
}

// NearbyCourier is a courier position with the computed distance from a
// queried origin.
type NearbyCourier struct {
	CourierID  int64
	DistanceKm float64
	Location   CourierLocation
}
