// Package matching ranks eligible couriers for an order pickup.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// maxCandidates caps how many roster entries one matching attempt inspects.
// Eligibility filtering happens after the pull, so this is intentionally much
// larger than any MaxResults.
const maxCandidates = 128

// Balanced-mode weights. Distance dominates, then rating, then inverse load;
// each term moves the score in the same direction as its single-criterion mode.
const (
	weightDistance = 1.0
	weightRating   = 0.5
	weightLoad     = 0.3
)

// Service implements courier matching over the location cache and the
// courier directory.
type Service struct {
	zones            zoneResolver
	directory        courierDirectory
	locations        locationIndex
	log              logx.Logger
	matchDuration    prometheus.Histogram
	operationTimeout time.Duration

	defaultRadiusKm   float64
	defaultMaxResults int
}

// NewService creates a matching Service.
func NewService(zones zoneResolver, directory courierDirectory, locations locationIndex, log logx.Logger, matchDuration prometheus.Histogram, timeout time.Duration) *Service {
	if log == nil {
		log = logx.Nop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		zones:             zones,
		directory:         directory,
		locations:         locations,
		log:               log,
		matchDuration:     matchDuration,
		operationTimeout:  timeout,
		defaultRadiusKm:   domain.DefaultRadiusKm,
		defaultMaxResults: domain.DefaultMaxResults,
	}
}

// WithDefaults overrides the fallbacks applied to a request that leaves the
// search radius or result cap unset. Non-positive values are ignored.
func (s *Service) WithDefaults(radiusKm float64, maxResults int) *Service {
	if radiusKm > 0 {
		s.defaultRadiusKm = radiusKm
	}
	if maxResults > 0 {
		s.defaultMaxResults = maxResults
	}
	return s
}

// FindOptimalCouriers returns eligible couriers near the pickup point, best
// candidate first. An empty result is a normal outcome, not an error: it
// means no eligible courier is currently in range.
func (s *Service) FindOptimalCouriers(ctx context.Context, pickup domain.Point, criteria domain.MatchCriteria) ([]domain.RankedCourier, error) {
	if !pickup.ValidCoordinate() {
		return nil, apperr.ErrInvalid
	}
	if criteria.RadiusKm <= 0 {
		criteria.RadiusKm = s.defaultRadiusKm
	}
	if criteria.MaxResults <= 0 {
		criteria.MaxResults = s.defaultMaxResults
	}
	criteria = criteria.Normalized()

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if s.matchDuration != nil {
			s.matchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	zone, err := s.zones.ZoneForPoint(ctx, pickup)
	if err != nil {
		return nil, fmt.Errorf("resolve pickup zone: %w", err)
	}
	if zone == "" {
		s.log.Debug("pickup outside known zones",
			logx.Float64("lat", pickup.Lat), logx.Float64("lng", pickup.Lng))
		return nil, nil
	}

	nearby := s.locations.NearestInZone(ctx, zone, pickup, criteria.RadiusKm, maxCandidates, criteria.ExcludeCouriers)
	if len(nearby) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(nearby))
	distances := make(map[int64]float64, len(nearby))
	for i, n := range nearby {
		ids[i] = n.CourierID
		distances[n.CourierID] = n.DistanceKm
	}

	couriers, err := s.directory.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate couriers: %w", err)
	}

	ranked := make([]domain.RankedCourier, 0, len(couriers))
	for _, c := range couriers {
		if !c.Eligible() {
			continue
		}
		d := distances[c.ID]
		ranked = append(ranked, domain.RankedCourier{
			Courier:    c,
			DistanceKm: d,
			Score:      score(criteria.Priority, d, c),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Courier.ID < ranked[j].Courier.ID
	})

	if len(ranked) > criteria.MaxResults {
		ranked = ranked[:criteria.MaxResults]
	}
	return ranked, nil
}

func score(priority domain.RankPriority, distanceKm float64, c domain.Courier) float64 {
	switch priority {
	case domain.RankDistance:
		return -distanceKm
	case domain.RankRating:
		return c.Rating
	case domain.RankLoad:
		return -float64(c.ActiveLoad)
	default: // balanced
		return weightDistance*(-distanceKm) +
			weightRating*c.Rating +
			weightLoad*(-float64(c.ActiveLoad))
	}
}
