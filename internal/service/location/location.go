// Package location maintains the last known courier positions and the
// per-zone courier rosters on top of a TTL store. Records vanish on TTL
// expiry, so absence of a location means the courier is not dispatchable.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"courier-dispatch/internal/cache"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
)

const (
	keyLocation     = "dispatch:loc:"
	keyZone         = "dispatch:zone:"
	keyCourierZones = "dispatch:courier-zones:"
)

// Service is the location cache. All failures are absorbed: writes report
// success as a bool, reads degrade to "no data". The engine must keep
// dispatching when the cache is cold.
type Service struct {
	store       cache.Store
	log         logx.Logger
	locationTTL time.Duration
	zoneTTL     time.Duration

	now func() time.Time
}

// NewService creates a location Service over the given store.
func NewService(store cache.Store, log logx.Logger, locationTTL, zoneTTL time.Duration) *Service {
	if log == nil {
		log = logx.Nop()
	}
	if locationTTL <= 0 {
		locationTTL = time.Hour
	}
	if zoneTTL <= 0 {
		zoneTTL = time.Hour
	}
	return &Service{
		store:       store,
		log:         log,
		locationTTL: locationTTL,
		zoneTTL:     zoneTTL,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Update is one position report from a courier, together with the zones the
// report places them in.
type Update struct {
	CourierID  int64
	Point      domain.Point
	AccuracyM  *float64
	SpeedKmh   *float64
	HeadingDeg *float64
	Zones      []string
}

// Record stores the location record under the courier's key and registers
// the courier in each zone roster. A false return means the caller must not
// assume the position is visible to matching.
func (s *Service) Record(ctx context.Context, u Update) bool {
	if u.CourierID <= 0 || !u.Point.ValidCoordinate() {
		return false
	}
	for _, z := range u.Zones {
		if !domain.ValidateZoneID(z) {
			return false
		}
	}

	now := s.now().UTC()
	rec := domain.CourierLocation{
		CourierID:  u.CourierID,
		Point:      u.Point,
		AccuracyM:  u.AccuracyM,
		SpeedKmh:   u.SpeedKmh,
		HeadingDeg: u.HeadingDeg,
		RecordedAt: now,
		ExpiresAt:  now.Add(s.locationTTL),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		s.log.Error("marshal location record", logx.Int64("courier_id", u.CourierID), logx.Err(err))
		return false
	}

	if err := s.store.Set(ctx, locationKey(u.CourierID), raw, s.locationTTL); err != nil {
		s.log.Warn("store location record", logx.Int64("courier_id", u.CourierID), logx.Err(err))
		return false
	}

	return s.registerZones(ctx, u.CourierID, u.Zones)
}

// registerZones adds the courier to each zone roster and records the reverse
// index. Memberships are never removed here: a roster entry outlives a zone
// change until its TTL runs out or the courier is removed, and lookups skip
// entries without a live location record.
func (s *Service) registerZones(ctx context.Context, courierID int64, zones []string) bool {
	member := strconv.FormatInt(courierID, 10)

	for _, z := range zones {
		if err := s.store.AddToSet(ctx, zoneKey(z), s.zoneTTL, member); err != nil {
			s.log.Warn("register courier in zone", logx.String("zone", z), logx.Err(err))
			return false
		}
	}
	if len(zones) > 0 {
		if err := s.store.AddToSet(ctx, courierZonesKey(courierID), s.zoneTTL, zones...); err != nil {
			s.log.Warn("update courier zone index", logx.Int64("courier_id", courierID), logx.Err(err))
			return false
		}
	}
	return true
}

// Get returns the courier's last known position, or nil when none is
// recorded, the record expired, or the cache failed.
func (s *Service) Get(ctx context.Context, courierID int64) *domain.CourierLocation {
	raw, err := s.store.Get(ctx, locationKey(courierID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("read location record", logx.Int64("courier_id", courierID), logx.Err(err))
		}
		return nil
	}
	var rec domain.CourierLocation
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log.Warn("decode location record", logx.Int64("courier_id", courierID), logx.Err(err))
		return nil
	}
	return &rec
}

// ZoneCouriers returns the ids of couriers currently registered in the zone.
// Membership may be stale relative to the location records; callers that
// need live positions should go through NearestInZone.
func (s *Service) ZoneCouriers(ctx context.Context, zone string) []int64 {
	members, err := s.store.SetMembers(ctx, zoneKey(zone))
	if err != nil {
		s.log.Warn("read zone roster", logx.String("zone", zone), logx.Err(err))
		return nil
	}

	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// NearestInZone returns couriers from the zone roster within radiusKm of
// origin, closest first, at most limit entries. Couriers without a live
// location record are skipped, not treated as zero distance; their roster
// entry stays until its own TTL expires.
func (s *Service) NearestInZone(ctx context.Context, zone string, origin domain.Point, radiusKm float64, limit int, exclude []int64) []domain.NearbyCourier {
	if limit <= 0 || radiusKm <= 0 {
		return nil
	}

	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var out []domain.NearbyCourier
	for _, id := range s.ZoneCouriers(ctx, zone) {
		if excluded[id] {
			continue
		}
		loc := s.Get(ctx, id)
		if loc == nil {
			continue
		}
		d := geo.DistanceKm(origin.Lat, origin.Lng, loc.Point.Lat, loc.Point.Lng)
		if d > radiusKm {
			continue
		}
		out = append(out, domain.NearbyCourier{CourierID: id, DistanceKm: d, Location: *loc})
	}

	sortNearby(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Remove deletes the courier's location record and every zone membership.
func (s *Service) Remove(ctx context.Context, courierID int64) {
	member := strconv.FormatInt(courierID, 10)
	zonesKey := courierZonesKey(courierID)

	zones, err := s.store.SetMembers(ctx, zonesKey)
	if err != nil {
		s.log.Warn("read courier zone index", logx.Int64("courier_id", courierID), logx.Err(err))
	}
	for _, z := range zones {
		if err := s.store.RemoveFromSet(ctx, zoneKey(z), member); err != nil {
			s.log.Warn("remove courier from zone", logx.String("zone", z), logx.Err(err))
		}
	}
	if err := s.store.Del(ctx, locationKey(courierID), zonesKey); err != nil {
		s.log.Warn("delete location record", logx.Int64("courier_id", courierID), logx.Err(err))
	}
}

// sortNearby orders by distance ascending with courier id as tie-break so
// equal distances resolve deterministically.
func sortNearby(list []domain.NearbyCourier) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].DistanceKm != list[j].DistanceKm {
			return list[i].DistanceKm < list[j].DistanceKm
		}
		return list[i].CourierID < list[j].CourierID
	})
}

func locationKey(courierID int64) string {
	return keyLocation + strconv.FormatInt(courierID, 10)
}

func zoneKey(zone string) string {
	return keyZone + zone
}

func courierZonesKey(courierID int64) string {
	return keyCourierZones + strconv.FormatInt(courierID, 10)
}
