// Package assignment owns the assignment state machine: every status an
// assignment ever holds passes through this package's conditional updates.
package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/gateway/notify"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/service/location"
)

// Earning and duration estimates. Crude by intent: precise quoting belongs
// to a pricing service, the engine only needs a consistent ordering.
const (
	avgSpeedKmh      = 20.0
	baseEarningCents = 2000
	perKmCents       = 500
)

// autoAssignScanLimit bounds how many waiting orders one location update may
// try to assign.
const autoAssignScanLimit = 10

// Config tunes the lifecycle manager.
type Config struct {
	OfferTimeout       time.Duration
	AutoAssignRadiusKm float64
	AutoAssignTimeout  time.Duration
	OperationTimeout   time.Duration
}

// Service is the assignment lifecycle manager.
type Service struct {
	store     assignmentStore
	orders    orderDirectory
	couriers  courierDirectory
	locations locationCache
	scheduler timeoutScheduler
	notifier  notifier
	log       logx.Logger

	assignments *prometheus.CounterVec
	cfg         Config

	reassign reassigner

	now   func() time.Time
	newID func() string
}

// NewService creates the lifecycle manager. The reassignment coordinator is
// attached afterwards via SetReassigner since it needs the Service itself.
func NewService(store assignmentStore, orders orderDirectory, couriers courierDirectory, locations locationCache, scheduler timeoutScheduler, n notifier, log logx.Logger, assignments *prometheus.CounterVec, cfg Config) *Service {
	if log == nil {
		log = logx.Nop()
	}
	if n == nil {
		n = notify.NewNop()
	}
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = 2 * time.Minute
	}
	if cfg.AutoAssignRadiusKm <= 0 {
		cfg.AutoAssignRadiusKm = 3.0
	}
	if cfg.AutoAssignTimeout <= 0 {
		cfg.AutoAssignTimeout = 45 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	return &Service{
		store:       store,
		orders:      orders,
		couriers:    couriers,
		locations:   locations,
		scheduler:   scheduler,
		notifier:    n,
		log:         log,
		assignments: assignments,
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// SetReassigner attaches the reassignment coordinator.
func (s *Service) SetReassigner(r reassigner) { s.reassign = r }

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// Create offers the order to the courier. Eligibility, the one-active-per-
// order check and the insert run in one transaction with the courier row
// locked; the timer and the notification are armed only after commit, so a
// failed create leaves no side effects behind.
func (s *Service) Create(ctx context.Context, courierID int64, oc domain.OrderContext, timeout time.Duration) (*domain.Assignment, error) {
	if courierID <= 0 || oc.OrderID == "" ||
		!oc.Pickup.ValidCoordinate() || !oc.Dropoff.ValidCoordinate() {
		return nil, apperr.ErrInvalid
	}
	if timeout <= 0 {
		timeout = s.cfg.OfferTimeout
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	courierPos := s.locations.Get(ctx, courierID)

	var a *domain.Assignment
	err := s.store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		c, err := tx.GetCourierForUpdate(ctx, courierID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.ErrInvalid
		}
		if !c.Eligible() {
			return apperr.ErrIneligible
		}
		active, err := tx.HasActiveByOrder(ctx, oc.OrderID)
		if err != nil {
			return err
		}
		if active {
			return apperr.ErrConflict
		}
		a = s.buildAssignment(c, oc, courierPos, timeout)
		return tx.InsertAssignment(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.MarkAssigned(ctx, oc.OrderID); err != nil {
		s.log.Warn("mark order assigned", logx.String("order_id", oc.OrderID), logx.Err(err))
	}
	s.scheduler.Arm(a.ID, timeout)
	s.countStatus(domain.AssignmentAssigned)
	s.publish(ctx, notify.Event{
		Channel:      notify.ChannelCourier,
		Type:         notify.EventAssignmentCreated,
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		CourierID:    a.CourierID,
	})

	s.log.Info("assignment created",
		logx.String("assignment_id", a.ID),
		logx.String("order_id", a.OrderID),
		logx.Int64("courier_id", a.CourierID),
		logx.Duration("offer_timeout", timeout),
	)
	return a, nil
}

func (s *Service) buildAssignment(c *domain.Courier, oc domain.OrderContext, pos *domain.CourierLocation, timeout time.Duration) *domain.Assignment {
	now := s.now().UTC()

	dist := geo.DistanceKm(oc.Pickup.Lat, oc.Pickup.Lng, oc.Dropoff.Lat, oc.Dropoff.Lng)
	a := &domain.Assignment{
		ID:         s.newID(),
		OrderID:    oc.OrderID,
		CourierID:  c.ID,
		ShiftID:    c.OpenShiftID,
		Status:     domain.AssignmentAssigned,
		Priority:   oc.Priority,
		Pickup:     oc.Pickup,
		Dropoff:    oc.Dropoff,
		AssignedAt: now,
		ExpiresAt:  now.Add(timeout),
	}
	if pos != nil {
		p := pos.Point
		a.CourierPos = &p
		dist += geo.DistanceKm(p.Lat, p.Lng, oc.Pickup.Lat, oc.Pickup.Lng)
	}
	a.EstDistance = dist
	a.EstDuration = time.Duration(dist / avgSpeedKmh * float64(time.Hour))
	a.EstEarning = baseEarningCents + int64(dist*perKmCents)
	return a
}

// Accept moves the offer to accepted. Succeeds at most once per assignment:
// the conditional update closes the race against a concurrent duplicate
// accept or a firing timeout, and the expiry guard closes the race against a
// not-yet-fired but overdue deadline.
func (s *Service) Accept(ctx context.Context, assignmentID string, courierID int64) error {
	if assignmentID == "" || courierID <= 0 {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	ok, err := s.store.UpdateStatus(ctx, assignmentID,
		domain.AssignmentAssigned, domain.AssignmentAccepted,
		domain.StatusPatch{Now: now, CourierID: &courierID, NotAfter: &now})
	if err != nil {
		return err
	}
	if !ok {
		return s.explainRefusal(ctx, assignmentID, courierID, true)
	}

	s.scheduler.Disarm(assignmentID)
	s.countStatus(domain.AssignmentAccepted)
	s.publishLifecycle(ctx, assignmentID, notify.EventAssignmentAccepted)
	return nil
}

// Reject declines the offer and, when the order is left without an active
// assignment, hands it to the reassignment coordinator.
func (s *Service) Reject(ctx context.Context, assignmentID string, courierID int64, reason string) error {
	if assignmentID == "" || courierID <= 0 {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// The order id is captured before the conditional update: once the offer
	// is rejected the reassignment must not hinge on a follow-up read that
	// may fail and leave the order stranded.
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a == nil {
		return apperr.ErrNotFound
	}

	patch := domain.StatusPatch{Now: s.now().UTC(), CourierID: &courierID}
	if reason != "" {
		patch.Reason = &reason
	}
	ok, err := s.store.UpdateStatus(ctx, assignmentID,
		domain.AssignmentAssigned, domain.AssignmentRejected, patch)
	if err != nil {
		return err
	}
	if !ok {
		return s.explainRefusal(ctx, assignmentID, courierID, false)
	}

	s.scheduler.Disarm(assignmentID)
	s.countStatus(domain.AssignmentRejected)
	s.publishLifecycle(ctx, assignmentID, notify.EventAssignmentRejected)
	s.maybeReassign(ctx, a.OrderID)
	return nil
}

// HandleTimeout expires the offer. A no-op unless the assignment is still
// exactly assigned, which makes duplicate and late firings safe.
func (s *Service) HandleTimeout(ctx context.Context, assignmentID string) error {
	if assignmentID == "" {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Same pre-read as Reject. A failure here is safe to surface: the row is
	// still assigned, so the sweeper re-arms the deadline and fires again.
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}

	ok, err := s.store.UpdateStatus(ctx, assignmentID,
		domain.AssignmentAssigned, domain.AssignmentTimedOut,
		domain.StatusPatch{Now: s.now().UTC()})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.countStatus(domain.AssignmentTimedOut)
	s.publishLifecycle(ctx, assignmentID, notify.EventAssignmentTimedOut)
	s.maybeReassign(ctx, a.OrderID)

	s.log.Info("assignment timed out", logx.String("assignment_id", assignmentID))
	return nil
}

// Extra carries the optional completion fields of a status update.
type Extra struct {
	Reason         string
	ActDistanceKm  *float64
	ActDuration    *time.Duration
	ActEarning     *int64
}

// UpdateStatus drives the delivery edges of the state machine:
// accepted to in_transit, in_transit to delivered or failed. Offer decisions
// go through Accept, Reject and HandleTimeout, never through here.
func (s *Service) UpdateStatus(ctx context.Context, assignmentID string, to domain.AssignmentStatus, extra Extra) error {
	if assignmentID == "" || !to.Valid() {
		return apperr.ErrInvalid
	}
	from, ok := deliveryEdge(to)
	if !ok {
		return apperr.ErrIllegalTransition
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	patch := domain.StatusPatch{Now: s.now().UTC()}
	if extra.Reason != "" {
		patch.Reason = &extra.Reason
	}
	patch.ActDistanceKm = extra.ActDistanceKm
	if extra.ActDuration != nil {
		sec := int64(extra.ActDuration.Seconds())
		patch.ActDurationSec = &sec
	}
	patch.ActEarning = extra.ActEarning

	changed, err := s.store.UpdateStatus(ctx, assignmentID, from, to, patch)
	if err != nil {
		return err
	}
	if !changed {
		a, err := s.store.Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return apperr.ErrNotFound
		}
		if a.Status == to {
			return apperr.ErrConflict
		}
		return apperr.ErrIllegalTransition
	}

	s.countStatus(to)
	s.publishLifecycle(ctx, assignmentID, notify.EventAssignmentStatus)
	return nil
}

// deliverySources are the states a courier-reported status update may leave.
// Offer decisions leave assigned through Accept, Reject and HandleTimeout
// only, so assigned is deliberately not here.
var deliverySources = [...]domain.AssignmentStatus{
	domain.AssignmentAccepted, domain.AssignmentInTransit,
}

// deliveryEdge maps a target delivery status to its only legal source.
func deliveryEdge(to domain.AssignmentStatus) (domain.AssignmentStatus, bool) {
	for _, from := range deliverySources {
		if domain.CanTransition(from, to) {
			return from, true
		}
	}
	return "", false
}

// UpdateCourierLocation records a courier position and opportunistically
// offers nearby waiting orders to the courier. This is how a courier who
// just came into range picks up a stale order without a polling job.
func (s *Service) UpdateCourierLocation(ctx context.Context, courierID int64, p domain.Point, meta domain.LocationMeta) error {
	if courierID <= 0 || !p.ValidCoordinate() {
		return apperr.ErrInvalid
	}

	c, err := s.couriers.Get(ctx, courierID)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrInvalid
	}

	upd := location.Update{
		CourierID:  courierID,
		Point:      p,
		AccuracyM:  meta.AccuracyM,
		SpeedKmh:   meta.SpeedKmh,
		HeadingDeg: meta.HeadingDeg,
		Zones:      c.Zones,
	}
	if !s.locations.Record(ctx, upd) {
		return apperr.ErrUnavailable
	}
	if err := s.store.UpdateCourierPosition(ctx, courierID, p); err != nil {
		s.log.Warn("stamp courier position", logx.Int64("courier_id", courierID), logx.Err(err))
	}

	s.publish(ctx, notify.Event{
		Channel:   notify.ChannelCustomer,
		Type:      notify.EventCourierLocation,
		CourierID: courierID,
	})

	if c.Eligible() {
		s.autoAssignNearby(ctx, c.ID, p)
	}
	return nil
}

// autoAssignNearby offers waiting orders whose pickup is within the
// auto-assign radius to the courier, with a short offer timeout. Conflicts
// and lost eligibility are normal here, not errors.
func (s *Service) autoAssignNearby(ctx context.Context, courierID int64, p domain.Point) {
	waiting, err := s.orders.ListUnassignedReady(ctx, autoAssignScanLimit)
	if err != nil {
		s.log.Warn("scan waiting orders", logx.Err(err))
		return
	}
	for _, oc := range waiting {
		if geo.DistanceKm(p.Lat, p.Lng, oc.Pickup.Lat, oc.Pickup.Lng) > s.cfg.AutoAssignRadiusKm {
			continue
		}
		if _, err := s.Create(ctx, courierID, oc, s.cfg.AutoAssignTimeout); err != nil {
			if apperr.Expected(err) {
				continue
			}
			s.log.Warn("auto-assign attempt",
				logx.String("order_id", oc.OrderID),
				logx.Int64("courier_id", courierID),
				logx.Err(err))
		}
	}
}

// ActiveByCourier returns the courier's current non-terminal assignments.
func (s *Service) ActiveByCourier(ctx context.Context, courierID int64) ([]domain.Assignment, error) {
	if courierID <= 0 {
		return nil, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListActiveByCourier(ctx, courierID)
}

// Get returns an assignment by id.
func (s *Service) Get(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	if assignmentID == "" {
		return nil, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

// explainRefusal turns a lost conditional update into the precise refusal
// the caller should see. A foreign assignment reads as not found rather than
// leaking its existence.
func (s *Service) explainRefusal(ctx context.Context, assignmentID string, courierID int64, checkExpiry bool) error {
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	switch {
	case a == nil:
		return apperr.ErrNotFound
	case a.CourierID != courierID:
		return apperr.ErrNotFound
	case a.Status != domain.AssignmentAssigned:
		return apperr.ErrIllegalTransition
	case checkExpiry && !s.now().UTC().Before(a.ExpiresAt):
		return apperr.ErrExpired
	default:
		return apperr.ErrConflict
	}
}

// maybeReassign hands the order to the coordinator once it has no active
// assignment left. The coordinator re-checks the guard itself; this check
// just avoids pointless calls.
func (s *Service) maybeReassign(ctx context.Context, orderID string) {
	if s.reassign == nil || orderID == "" {
		return
	}
	active, err := s.store.HasActiveByOrder(ctx, orderID)
	if err != nil {
		s.log.Warn("active assignment check", logx.String("order_id", orderID), logx.Err(err))
		return
	}
	if active {
		return
	}
	if err := s.reassign.TryReassign(ctx, orderID); err != nil {
		s.log.Warn("reassignment attempt", logx.String("order_id", orderID), logx.Err(err))
	}
}

// publishLifecycle loads the fresh row and publishes a lifecycle event for
// it. Best effort: a failed read costs the event, never the state change.
func (s *Service) publishLifecycle(ctx context.Context, assignmentID, eventType string) {
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil || a == nil {
		s.log.Warn("load assignment for event",
			logx.String("assignment_id", assignmentID), logx.Err(err))
		return
	}
	e := notify.Event{
		Channel:      notify.ChannelCourier,
		Type:         eventType,
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		CourierID:    a.CourierID,
	}
	if a.Reason != nil {
		e.Payload = map[string]string{"reason": *a.Reason}
	}
	s.publish(ctx, e)
}

func (s *Service) publish(ctx context.Context, e notify.Event) {
	e.At = s.now().UTC()
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.log.Warn("publish event", logx.String("event", e.Type), logx.Err(err))
	}
}

func (s *Service) countStatus(status domain.AssignmentStatus) {
	if s.assignments != nil {
		s.assignments.WithLabelValues(string(status)).Inc()
	}
}
