package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/assignment"
)

const assignmentID = "3e7c32c4-61c1-4a32-a96f-0d27b37e1a88"

type stubDispatchUsecase struct {
	createFn         func(ctx context.Context, courierID int64, oc domain.OrderContext, timeout time.Duration) (*domain.Assignment, error)
	acceptFn         func(ctx context.Context, assignmentID string, courierID int64) error
	rejectFn         func(ctx context.Context, assignmentID string, courierID int64, reason string) error
	updateStatusFn   func(ctx context.Context, assignmentID string, to domain.AssignmentStatus, extra assignment.Extra) error
	updateLocationFn func(ctx context.Context, courierID int64, p domain.Point, meta domain.LocationMeta) error
	activeFn         func(ctx context.Context, courierID int64) ([]domain.Assignment, error)
	getFn            func(ctx context.Context, assignmentID string) (*domain.Assignment, error)
}

func (s *stubDispatchUsecase) Create(ctx context.Context, courierID int64, oc domain.OrderContext, timeout time.Duration) (*domain.Assignment, error) {
	return s.createFn(ctx, courierID, oc, timeout)
}

func (s *stubDispatchUsecase) Accept(ctx context.Context, id string, courierID int64) error {
	return s.acceptFn(ctx, id, courierID)
}

func (s *stubDispatchUsecase) Reject(ctx context.Context, id string, courierID int64, reason string) error {
	return s.rejectFn(ctx, id, courierID, reason)
}

func (s *stubDispatchUsecase) UpdateStatus(ctx context.Context, id string, to domain.AssignmentStatus, extra assignment.Extra) error {
	return s.updateStatusFn(ctx, id, to, extra)
}

func (s *stubDispatchUsecase) UpdateCourierLocation(ctx context.Context, courierID int64, p domain.Point, meta domain.LocationMeta) error {
	return s.updateLocationFn(ctx, courierID, p, meta)
}

func (s *stubDispatchUsecase) ActiveByCourier(ctx context.Context, courierID int64) ([]domain.Assignment, error) {
	return s.activeFn(ctx, courierID)
}

func (s *stubDispatchUsecase) Get(ctx context.Context, id string) (*domain.Assignment, error) {
	return s.getFn(ctx, id)
}

func testLogger() logx.Logger { return logx.Nop() }

func withURLParam(req *http.Request, name, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func sampleAssignment() *domain.Assignment {
	return &domain.Assignment{
		ID:          assignmentID,
		OrderID:     "order-1",
		CourierID:   7,
		Status:      domain.AssignmentAssigned,
		Pickup:      domain.Point{Lat: 30.0444, Lng: 31.2357},
		Dropoff:     domain.Point{Lat: 30.0626, Lng: 31.2497},
		AssignedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2025, 6, 1, 12, 2, 0, 0, time.UTC),
		EstDistance: 2.4,
		EstDuration: 7 * time.Minute,
		EstEarning:  3200,
	}
}

func TestDispatchHandler_Create_OK(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		createFn: func(ctx context.Context, courierID int64, oc domain.OrderContext, timeout time.Duration) (*domain.Assignment, error) {
			require.Equal(t, int64(7), courierID)
			require.Equal(t, "order-1", oc.OrderID)
			require.Equal(t, 90*time.Second, timeout)
			return sampleAssignment(), nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	body := `{"courier_id":7,"order":{"order_id":"order-1","pickup":{"lat":30.0444,"lng":31.2357},"dropoff":{"lat":30.0626,"lng":31.2497},"priority":1},"timeout_seconds":90}`
	req := httptest.NewRequest(http.MethodPost, "/assignments", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "/assignments/"+assignmentID, rr.Header().Get("Location"))

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, assignmentID, resp["id"])
	require.Equal(t, "assigned", resp["status"])
}

func TestDispatchHandler_Create_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid", apperr.ErrInvalid, http.StatusBadRequest},
		{"ineligible", apperr.ErrIneligible, http.StatusUnprocessableEntity},
		{"conflict", apperr.ErrConflict, http.StatusConflict},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			uc := &stubDispatchUsecase{
				createFn: func(context.Context, int64, domain.OrderContext, time.Duration) (*domain.Assignment, error) {
					return nil, tc.err
				},
			}
			h := handlers.NewDispatchHandler(uc, testLogger())

			body := `{"courier_id":7,"order":{"order_id":"order-1","pickup":{"lat":1,"lng":1},"dropoff":{"lat":2,"lng":2},"priority":0}}`
			req := httptest.NewRequest(http.MethodPost, "/assignments", strings.NewReader(body))
			rr := httptest.NewRecorder()

			h.Create(rr, req)
			require.Equal(t, tc.code, rr.Code)
		})
	}
}

func TestDispatchHandler_Create_BadJSON(t *testing.T) {
	t.Parallel()

	h := handlers.NewDispatchHandler(&stubDispatchUsecase{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/assignments", strings.NewReader(`{"courier_id":`))
	rr := httptest.NewRecorder()

	h.Create(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDispatchHandler_Create_UnknownField(t *testing.T) {
	t.Parallel()

	h := handlers.NewDispatchHandler(&stubDispatchUsecase{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/assignments", strings.NewReader(`{"bogus":1}`))
	rr := httptest.NewRecorder()

	h.Create(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDispatchHandler_Accept_OK(t *testing.T) {
	t.Parallel()

	called := false
	uc := &stubDispatchUsecase{
		acceptFn: func(ctx context.Context, id string, courierID int64) error {
			called = true
			require.Equal(t, assignmentID, id)
			require.Equal(t, int64(7), courierID)
			return nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/assignments/"+assignmentID+"/accept", strings.NewReader(`{"courier_id":7}`))
	req = withURLParam(req, "id", assignmentID)
	rr := httptest.NewRecorder()

	h.Accept(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestDispatchHandler_Accept_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"expired", apperr.ErrExpired, http.StatusGone},
		{"already decided", apperr.ErrIllegalTransition, http.StatusConflict},
		{"lost race", apperr.ErrConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			uc := &stubDispatchUsecase{
				acceptFn: func(context.Context, string, int64) error { return tc.err },
			}
			h := handlers.NewDispatchHandler(uc, testLogger())

			req := httptest.NewRequest(http.MethodPost, "/assignments/"+assignmentID+"/accept", strings.NewReader(`{"courier_id":7}`))
			req = withURLParam(req, "id", assignmentID)
			rr := httptest.NewRecorder()

			h.Accept(rr, req)
			require.Equal(t, tc.code, rr.Code)
		})
	}
}

func TestDispatchHandler_Accept_InvalidID(t *testing.T) {
	t.Parallel()

	h := handlers.NewDispatchHandler(&stubDispatchUsecase{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/assignments/not-a-uuid/accept", strings.NewReader(`{"courier_id":7}`))
	req = withURLParam(req, "id", "not-a-uuid")
	rr := httptest.NewRecorder()

	h.Accept(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDispatchHandler_Reject_PassesReason(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		rejectFn: func(ctx context.Context, id string, courierID int64, reason string) error {
			require.Equal(t, "too far", reason)
			return nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/assignments/"+assignmentID+"/reject", strings.NewReader(`{"courier_id":7,"reason":"too far"}`))
	req = withURLParam(req, "id", assignmentID)
	rr := httptest.NewRecorder()

	h.Reject(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestDispatchHandler_UpdateStatus_Delivered(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		updateStatusFn: func(ctx context.Context, id string, to domain.AssignmentStatus, extra assignment.Extra) error {
			require.Equal(t, domain.AssignmentDelivered, to)
			require.NotNil(t, extra.ActDistanceKm)
			require.InDelta(t, 2.9, *extra.ActDistanceKm, 1e-9)
			require.NotNil(t, extra.ActDuration)
			require.Equal(t, 11*time.Minute, *extra.ActDuration)
			return nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	body := `{"status":"delivered","actual_distance_km":2.9,"actual_duration_seconds":660,"actual_earning":3450}`
	req := httptest.NewRequest(http.MethodPost, "/assignments/"+assignmentID+"/status", strings.NewReader(body))
	req = withURLParam(req, "id", assignmentID)
	rr := httptest.NewRecorder()

	h.UpdateStatus(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestDispatchHandler_UpdateStatus_IllegalTransition(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		updateStatusFn: func(context.Context, string, domain.AssignmentStatus, assignment.Extra) error {
			return apperr.ErrIllegalTransition
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/assignments/"+assignmentID+"/status", strings.NewReader(`{"status":"delivered"}`))
	req = withURLParam(req, "id", assignmentID)
	rr := httptest.NewRecorder()

	h.UpdateStatus(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDispatchHandler_UpdateLocation_OK(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		updateLocationFn: func(ctx context.Context, courierID int64, p domain.Point, meta domain.LocationMeta) error {
			require.Equal(t, int64(42), courierID)
			require.InDelta(t, 30.05, p.Lat, 1e-9)
			require.Nil(t, meta.AccuracyM)
			return nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/couriers/42/location", strings.NewReader(`{"lat":30.05,"lng":31.24}`))
	req = withURLParam(req, "id", "42")
	rr := httptest.NewRecorder()

	h.UpdateLocation(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestDispatchHandler_UpdateLocation_StoreDown(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		updateLocationFn: func(context.Context, int64, domain.Point, domain.LocationMeta) error {
			return apperr.ErrUnavailable
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/couriers/42/location", strings.NewReader(`{"lat":30.05,"lng":31.24}`))
	req = withURLParam(req, "id", "42")
	rr := httptest.NewRecorder()

	h.UpdateLocation(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDispatchHandler_ActiveByCourier_OK(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		activeFn: func(ctx context.Context, courierID int64) ([]domain.Assignment, error) {
			return []domain.Assignment{*sampleAssignment()}, nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/couriers/7/assignments", nil)
	req = withURLParam(req, "id", "7")
	rr := httptest.NewRecorder()

	h.ActiveByCourier(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 1)
	require.Equal(t, "order-1", resp[0]["order_id"])
}

func TestDispatchHandler_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		getFn: func(context.Context, string) (*domain.Assignment, error) {
			return nil, apperr.ErrNotFound
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/assignments/"+assignmentID, nil)
	req = withURLParam(req, "id", assignmentID)
	rr := httptest.NewRecorder()

	h.GetByID(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDispatchHandler_UpdateLocation_ForwardsTelemetry(t *testing.T) {
	t.Parallel()

	uc := &stubDispatchUsecase{
		updateLocationFn: func(_ context.Context, _ int64, _ domain.Point, meta domain.LocationMeta) error {
			require.NotNil(t, meta.AccuracyM)
			require.InDelta(t, 8.5, *meta.AccuracyM, 1e-9)
			require.NotNil(t, meta.SpeedKmh)
			require.InDelta(t, 24.0, *meta.SpeedKmh, 1e-9)
			require.NotNil(t, meta.HeadingDeg)
			require.InDelta(t, 270.0, *meta.HeadingDeg, 1e-9)
			return nil
		},
	}
	h := handlers.NewDispatchHandler(uc, testLogger())

	body := `{"lat":30.05,"lng":31.24,"accuracy_m":8.5,"speed_kmh":24,"heading_deg":270}`
	req := httptest.NewRequest(http.MethodPost, "/couriers/42/location", strings.NewReader(body))
	req = withURLParam(req, "id", "42")
	rr := httptest.NewRecorder()

	h.UpdateLocation(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
