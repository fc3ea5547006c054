package handlers

import (
	"errors"
	"net/http"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/logx"
)

// MatchHandler serves courier matching queries.
type MatchHandler struct {
	uc  matchUsecase
	log logx.Logger
}

// NewMatchHandler wires a matchUsecase into HTTP handlers.
func NewMatchHandler(uc matchUsecase, log logx.Logger) *MatchHandler {
	return &MatchHandler{uc: uc, log: log}
}

// Find handles POST /couriers/match. An empty list is a valid result, not
// an error.
func (h *MatchHandler) Find(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if ok := decodeJSON(h.log, w, r, &req); !ok {
		return
	}

	pickup, criteria := req.toModel()
	ranked, err := h.uc.FindOptimalCouriers(r.Context(), pickup, criteria)
	switch {
	case err == nil:
		writeJSON(h.log, w, r, http.StatusOK, rankedToResponse(ranked))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.log, w, r, http.StatusBadRequest, "invalid pickup point")
	default:
		writeError(h.log, w, r, http.StatusInternalServerError, "internal error")
	}
}
