package assignment

import (
	"context"
	"errors"
	"sync"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/gateway/notify"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/service/location"
)

// fakeStore mimics the Postgres repository: mutations hold one lock, the
// conditional status update has the same guard semantics, and inserting a
// second active assignment for an order fails the way the partial unique
// index does.
type fakeStore struct {
	mu          sync.Mutex
	assignments map[string]*domain.Assignment
	couriers    map[int64]*domain.Courier
	positions   map[int64]domain.Point
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments: make(map[string]*domain.Assignment),
		couriers:    make(map[int64]*domain.Courier),
		positions:   make(map[int64]domain.Point),
	}
}

func (s *fakeStore) putCourier(c domain.Courier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.couriers[c.ID] = &c
}

func (s *fakeStore) get(id string) *domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assignments[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&fakeTx{s: s})
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.Assignment, error) {
	return s.get(id), nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id string, from, to domain.AssignmentStatus, p domain.StatusPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	if p.CourierID != nil && a.CourierID != *p.CourierID {
		return false, nil
	}
	if p.NotAfter != nil && !a.ExpiresAt.After(*p.NotAfter) {
		return false, nil
	}

	a.Status = to
	switch to {
	case domain.AssignmentAccepted:
		t := p.Now
		a.AcceptedAt = &t
	case domain.AssignmentInTransit:
		t := p.Now
		a.StartedAt = &t
	case domain.AssignmentDelivered, domain.AssignmentFailed:
		t := p.Now
		a.CompletedAt = &t
	}
	if p.Reason != nil {
		a.Reason = p.Reason
	}
	if p.ActDistanceKm != nil {
		a.ActDistance = p.ActDistanceKm
	}
	if p.ActDurationSec != nil {
		d := time.Duration(*p.ActDurationSec) * time.Second
		a.ActDuration = &d
	}
	if p.ActEarning != nil {
		a.ActEarning = p.ActEarning
	}
	return true, nil
}

func (s *fakeStore) HasActiveByOrder(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasActiveLocked(orderID), nil
}

func (s *fakeStore) hasActiveLocked(orderID string) bool {
	for _, a := range s.assignments {
		if a.OrderID == orderID && a.Status.Active() {
			return true
		}
	}
	return false
}

func (s *fakeStore) LatestByOrder(_ context.Context, orderID string) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.Assignment
	for _, a := range s.assignments {
		if a.OrderID != orderID {
			continue
		}
		if latest == nil || a.AssignedAt.After(latest.AssignedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeStore) TriedCouriers(_ context.Context, orderID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, a := range s.assignments {
		if a.OrderID == orderID && !seen[a.CourierID] {
			seen[a.CourierID] = true
			out = append(out, a.CourierID)
		}
	}
	return out, nil
}

func (s *fakeStore) CountByOrder(_ context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ListActiveByCourier(_ context.Context, courierID int64) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Assignment
	for _, a := range s.assignments {
		if a.CourierID == courierID && a.Status.Active() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateCourierPosition(_ context.Context, courierID int64, p domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[courierID] = p
	return nil
}

// activeCountByOrder samples the order-level invariant.
func (s *fakeStore) activeCountByOrder(orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.OrderID == orderID && a.Status.Active() {
			n++
		}
	}
	return n
}

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) GetCourierForUpdate(_ context.Context, courierID int64) (*domain.Courier, error) {
	if c, ok := t.s.couriers[courierID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (t *fakeTx) HasActiveByOrder(_ context.Context, orderID string) (bool, error) {
	return t.s.hasActiveLocked(orderID), nil
}

func (t *fakeTx) InsertAssignment(_ context.Context, a *domain.Assignment) error {
	if t.s.hasActiveLocked(a.OrderID) {
		return apperr.ErrConflict
	}
	cp := *a
	t.s.assignments[a.ID] = &cp
	return nil
}

type fakeOrders struct {
	mu       sync.Mutex
	contexts map[string]domain.OrderContext
	waiting  []domain.OrderContext
	assigned []string
	ready    []string
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{contexts: make(map[string]domain.OrderContext)}
}

func (f *fakeOrders) GetContext(_ context.Context, orderID string) (*domain.OrderContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if oc, ok := f.contexts[orderID]; ok {
		return &oc, nil
	}
	return nil, nil
}

func (f *fakeOrders) ListUnassignedReady(_ context.Context, limit int) ([]domain.OrderContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.waiting
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]domain.OrderContext(nil), out...), nil
}

func (f *fakeOrders) MarkAssigned(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, orderID)
	return nil
}

func (f *fakeOrders) MarkReady(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, orderID)
	return nil
}

type fakeCouriers struct {
	store *fakeStore
}

func (f *fakeCouriers) Get(_ context.Context, id int64) (*domain.Courier, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if c, ok := f.store.couriers[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

type fakeLocations struct {
	mu      sync.Mutex
	records []location.Update
	points  map[int64]domain.Point
	fail    bool
}

func newFakeLocations() *fakeLocations {
	return &fakeLocations{points: make(map[int64]domain.Point)}
}

func (f *fakeLocations) Record(_ context.Context, u location.Update) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.records = append(f.records, u)
	f.points[u.CourierID] = u.Point
	return true
}

func (f *fakeLocations) Get(_ context.Context, courierID int64) *domain.CourierLocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.points[courierID]; ok {
		return &domain.CourierLocation{CourierID: courierID, Point: p}
	}
	return nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	armed    map[string]time.Duration
	disarmed []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[string]time.Duration)}
}

func (f *fakeScheduler) Arm(id string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.armed[id]; !ok {
		f.armed[id] = delay
	}
}

func (f *fakeScheduler) Disarm(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, id)
	f.disarmed = append(f.disarmed, id)
}

func (f *fakeScheduler) armedDelay(id string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.armed[id]
	return d, ok
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Notify(_ context.Context, e notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeNotifier) typesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeReassigner struct {
	mu     sync.Mutex
	orders []string
}

func (f *fakeReassigner) TryReassign(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orderID)
	return nil
}

func (f *fakeReassigner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.orders...)
}

type fakeMatcher struct {
	mu        sync.Mutex
	ranked    []domain.RankedCourier
	lastExcl  []int64
	callCount int
}

func (f *fakeMatcher) FindOptimalCouriers(_ context.Context, _ domain.Point, criteria domain.MatchCriteria) ([]domain.RankedCourier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	f.lastExcl = append([]int64(nil), criteria.ExcludeCouriers...)

	excluded := make(map[int64]bool, len(criteria.ExcludeCouriers))
	for _, id := range criteria.ExcludeCouriers {
		excluded[id] = true
	}
	var out []domain.RankedCourier
	for _, rc := range f.ranked {
		if !excluded[rc.Courier.ID] {
			out = append(out, rc)
		}
	}
	return out, nil
}

// readFlakyStore loses every read after the first successful status update,
// the way a store does when the write lands but follow-up reads hit a node
// that just went away.
type readFlakyStore struct {
	*fakeStore
	casLanded bool
}

func (s *readFlakyStore) UpdateStatus(ctx context.Context, id string, from, to domain.AssignmentStatus, p domain.StatusPatch) (bool, error) {
	ok, err := s.fakeStore.UpdateStatus(ctx, id, from, to, p)
	if ok {
		s.casLanded = true
	}
	return ok, err
}

func (s *readFlakyStore) Get(ctx context.Context, id string) (*domain.Assignment, error) {
	if s.casLanded {
		return nil, errors.New("read: connection refused")
	}
	return s.fakeStore.Get(ctx, id)
}
