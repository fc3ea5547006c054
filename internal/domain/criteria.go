package domain

// RankPriority selects the dominant ranking criterion for courier matching.
type RankPriority string

// List of possible ranking priorities
const (
	RankDistance RankPriority = "distance"
	RankRating   RankPriority = "rating"
	RankLoad     RankPriority = "load"
	RankBalanced RankPriority = "balanced"
)

// Valid checks if the RankPriority is valid
func (p RankPriority) Valid() bool {
	switch p {
	case RankDistance, RankRating, RankLoad, RankBalanced:
		return true
	default:
		return false
	}
}

// MatchCriteria tunes a single matching attempt.
type MatchCriteria struct {
	Priority   RankPriority
	MaxResults int
	RadiusKm   float64
	// ExcludeCouriers are couriers already tried for this order.
	ExcludeCouriers []int64
}

// Defaults for MatchCriteria.
const (
	DefaultMaxResults = 5
	DefaultRadiusKm   = 5.0
)

// Normalized returns a copy with zero values replaced by defaults.
func (c MatchCriteria) Normalized() MatchCriteria {
	if !c.Priority.Valid() {
		c.Priority = RankBalanced
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.RadiusKm <= 0 {
		c.RadiusKm = DefaultRadiusKm
	}
	return c
}

// RankedCourier is a matching candidate with its computed score.
type RankedCourier struct {
	Courier    Courier
	DistanceKm float64
	Score      float64
}
