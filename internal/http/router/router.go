package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and the
// dispatch routes.
func New(
	h *handlers.Handlers,
	dispatch *handlers.DispatchHandler,
	match *handlers.MatchHandler,
	rl *ratelimit.Middleware,
	logger logx.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(5 * time.Second))
	r.Use(middleware.Observability(logger))

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/assignments", func(r chi.Router) {
		r.Post("/", dispatch.Create)
		r.Get("/{id}", dispatch.GetByID)
		r.Post("/{id}/accept", dispatch.Accept)
		r.Post("/{id}/reject", dispatch.Reject)
		r.Post("/{id}/status", dispatch.UpdateStatus)
	})

	r.Route("/couriers", func(r chi.Router) {
		r.Get("/{id}/assignments", dispatch.ActiveByCourier)
		r.Post("/match", match.Find)
		// Position reports are the hottest endpoint; only they get
		// rate limited.
		r.With(rl.Handler()).Post("/{id}/location", dispatch.UpdateLocation)
	})

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
