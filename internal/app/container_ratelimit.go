package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
)

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

func newRateLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return ratelimit.NewNopLimiter()
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       cfg.RateLimit.Rate,
		Burst:      cfg.RateLimit.Burst,
		TTL:        cfg.RateLimit.TTL,
		MaxBuckets: cfg.RateLimit.MaxBuckets,
	})
}

type rateLimitIn struct {
	dig.In

	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter)
}
