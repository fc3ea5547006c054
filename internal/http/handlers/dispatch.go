package handlers

import (
	"errors"
	"net/http"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/assignment"
)

// DispatchHandler serves HTTP endpoints for the assignment lifecycle.
type DispatchHandler struct {
	uc  dispatchUsecase
	log logx.Logger
}

// NewDispatchHandler wires a dispatchUsecase into HTTP handlers.
func NewDispatchHandler(uc dispatchUsecase, log logx.Logger) *DispatchHandler {
	return &DispatchHandler{uc: uc, log: log}
}

// Create handles POST /assignments.
func (h *DispatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if ok := decodeJSON(h.log, w, r, &req); !ok {
		return
	}

	courierID, oc, timeout := req.toModel()
	a, err := h.uc.Create(r.Context(), courierID, oc, timeout)
	switch {
	case err == nil:
		w.Header().Set("Location", "/assignments/"+a.ID)
		writeJSON(h.log, w, r, http.StatusCreated, modelToResponse(*a))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.log, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrIneligible):
		writeError(h.log, w, r, http.StatusUnprocessableEntity, "courier not eligible")
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.log, w, r, http.StatusConflict, "order already has an active assignment")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}

// GetByID handles GET /assignments/{id}.
func (h *DispatchHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromURL(r, "id")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	a, err := h.uc.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(h.log, w, r, http.StatusOK, modelToResponse(*a))
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.log, w, r, http.StatusNotFound, "not found")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Accept handles POST /assignments/{id}/accept.
func (h *DispatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromURL(r, "id")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req acceptRequest
	if ok := decodeJSON(h.log, w, r, &req); !ok {
		return
	}

	err = h.uc.Accept(r.Context(), id, req.CourierID)
	h.writeDecisionResult(w, r, err)
}

// Reject handles POST /assignments/{id}/reject.
func (h *DispatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromURL(r, "id")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req rejectRequest
	if ok := decodeJSON(h.log, w, r, &req); !ok {
		return
	}

	err = h.uc.Reject(r.Context(), id, req.CourierID, req.Reason)
	h.writeDecisionResult(w, r, err)
}

// writeDecisionResult maps an accept or reject outcome onto a response.
// Expired and already-decided offers both read as "no longer available";
// they differ only in status code.
func (h *DispatchHandler) writeDecisionResult(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		writeJSON(h.log, w, r, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.log, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.log, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrExpired):
		writeError(h.log, w, r, http.StatusGone, "offer no longer available")
	case errors.Is(err, apperr.ErrIllegalTransition), errors.Is(err, apperr.ErrConflict):
		writeError(h.log, w, r, http.StatusConflict, "offer no longer available")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}

// UpdateStatus handles POST /assignments/{id}/status.
func (h *DispatchHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromURL(r, "id")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req statusUpdateRequest
	if ok := decodeJSON(h.log, w, r, &req); !ok {
		return
	}

	extra := assignment.Extra{
		Reason:        req.Reason,
		ActDistanceKm: req.ActualDistanceKm,
		ActEarning:    req.ActualEarning,
	}
	if req.ActualDurationSec != nil {
		d := time.Duration(*req.ActualDurationSec) * time.Second
		extra.ActDuration = &d
	}

	err = h.uc.UpdateStatus(r.Context(), id, req.Status, extra)
	switch {
	case err == nil:
		writeJSON(h.log, w, r, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.log, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.log, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrIllegalTransition), errors.Is(err, apperr.ErrConflict):
		writeError(h.log, w, r, http.StatusConflict, "illegal status transition")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}

// UpdateLocation handles POST /couriers/{id}/location.
func (h *DispatchHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	courierID, err := courierIDFromURL(r, "id")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req locationUpdateRequest
	if ok := decodeJSON(h.log, w, r, &req); !ok {
		return
	}

	err = h.uc.UpdateCourierLocation(r.Context(), courierID,
		domain.Point{Lat: req.Lat, Lng: req.Lng},
		domain.LocationMeta{
			AccuracyM:  req.AccuracyM,
			SpeedKmh:   req.SpeedKmh,
			HeadingDeg: req.HeadingDeg,
		})
	switch {
	case err == nil:
		writeJSON(h.log, w, r, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.log, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrUnavailable):
		writeError(h.log, w, r, http.StatusServiceUnavailable, "location store unavailable")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}

// ActiveByCourier handles GET /couriers/{id}/assignments.
func (h *DispatchHandler) ActiveByCourier(w http.ResponseWriter, r *http.Request) {
	courierID, err := courierIDFromURL(r, "id")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	list, err := h.uc.ActiveByCourier(r.Context(), courierID)
	switch {
	case err == nil:
		writeJSON(h.log, w, r, http.StatusOK, modelsToResponse(list))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.log, w, r, http.StatusBadRequest, "invalid id")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}
