package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/cache"
	"courier-dispatch/internal/config"
	"courier-dispatch/internal/gateway/notify"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/scheduler"
	"courier-dispatch/internal/service/assignment"
	"courier-dispatch/internal/service/location"
	"courier-dispatch/internal/service/matching"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function.
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerCache(container); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

// registerCollector registers c, reusing the already registered collector
// when two containers live in one process.
func registerCollector[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

type metricsOut struct {
	dig.Out

	Assignments       *prometheus.CounterVec
	MatchDuration     prometheus.Histogram
	Reassignments     prometheus.Counter `name:"reassignments_total"`
	NotifierRetries   prometheus.Counter `name:"notifier_retries_total"`
	RateLimitExceeded prometheus.Counter `name:"rate_limit_exceeded_total"`
}

func newMetrics() metricsOut {
	return metricsOut{
		Assignments:       registerCollector(metrics.NewAssignmentsTotal()),
		MatchDuration:     registerCollector(metrics.NewMatchDuration()),
		Reassignments:     registerCollector(metrics.NewReassignmentsTotal()),
		NotifierRetries:   registerCollector(metrics.NewNotifierRetriesTotal()),
		RateLimitExceeded: registerCollector(metrics.NewRateLimitExceededTotal()),
	}
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		NewLogger,
		config.Load,
		newMetrics,
	)
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerCache(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) cache.Store {
			return cache.NewRedisStore(cache.NewRedis(cfg.Redis.Addr))
		},
	)
}

type notifierIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Retries prometheus.Counter `name:"notifier_retries_total"`
}

func newNotifier(in notifierIn) (notify.Notifier, error) {
	if len(in.Cfg.Kafka.Brokers) == 0 {
		in.Logger.Warn("kafka not configured, lifecycle events are dropped")
		return notify.NewNop(), nil
	}
	producer, err := notify.NewSyncProducer(in.Cfg.Kafka.Brokers)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	kn := notify.NewKafkaNotifier(producer, in.Cfg.Kafka.EventsTopic)
	return notify.NewRetryingNotifier(kn, in.Logger, in.Retries, notify.RetryConfig{}), nil
}

type dispatchIn struct {
	dig.In

	Store     *repository.AssignmentRepo
	Orders    *repository.OrderRepo
	Couriers  *repository.CourierRepo
	Locations *location.Service
	Matcher   *matching.Service
	Timers    *scheduler.Timers
	Notifier  notify.Notifier
	Logger    logx.Logger
	Cfg       *config.Config

	Assignments   *prometheus.CounterVec
	Reassignments prometheus.Counter `name:"reassignments_total"`
}

type dispatchOut struct {
	dig.Out

	Service     *assignment.Service
	Coordinator *assignment.Coordinator
}

// newDispatch builds the lifecycle manager and the reassignment coordinator
// together: the coordinator creates assignments through the service, the
// service hands lost offers back to the coordinator, and fired timers land
// in the service's timeout handler.
func newDispatch(in dispatchIn) dispatchOut {
	svc := assignment.NewService(
		in.Store, in.Orders, in.Couriers, in.Locations, in.Timers, in.Notifier,
		in.Logger, in.Assignments,
		assignment.Config{
			OfferTimeout:       in.Cfg.Dispatch.OfferTimeout,
			AutoAssignRadiusKm: in.Cfg.Dispatch.AutoAssignRadiusKm,
			AutoAssignTimeout:  in.Cfg.Dispatch.AutoAssignTimeout,
			OperationTimeout:   in.Cfg.Dispatch.OperationTimeout,
		},
	)
	coord := assignment.NewCoordinator(
		in.Store, in.Orders, in.Matcher, svc, in.Notifier,
		in.Logger, in.Reassignments, in.Cfg.Dispatch.MaxReassignments,
	)
	svc.SetReassigner(coord)
	in.Timers.Bind(newTimeoutFire(svc.HandleTimeout, in.Logger))
	return dispatchOut{Service: svc, Coordinator: coord}
}

// newTimeoutFire adapts the timeout handler to the fire-and-forget shape the
// timer wheel expects. A failed firing is logged, not retried here: the row
// stays assigned, so the sweeper re-arms it on its next pass.
func newTimeoutFire(handle func(context.Context, string) error, logger logx.Logger) scheduler.TimeoutFunc {
	return func(ctx context.Context, assignmentID string) {
		if err := handle(ctx, assignmentID); err != nil {
			logger.Warn("handle offer timeout",
				logx.String("assignment_id", assignmentID), logx.Err(err))
		}
	}
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		repository.NewAssignmentRepo,
		repository.NewCourierRepo,
		repository.NewOrderRepo,
		repository.NewZoneRepo,
		func(store cache.Store, logger logx.Logger, cfg *config.Config) *location.Service {
			return location.NewService(store, logger, cfg.Dispatch.LocationTTL, cfg.Dispatch.ZoneTTL)
		},
		func(zones *repository.ZoneRepo, couriers *repository.CourierRepo, locs *location.Service, logger logx.Logger, matchDuration prometheus.Histogram, cfg *config.Config) *matching.Service {
			return matching.NewService(zones, couriers, locs, logger, matchDuration, cfg.Dispatch.OperationTimeout).
				WithDefaults(cfg.Dispatch.RadiusKm, cfg.Dispatch.MaxResults)
		},
		scheduler.NewTimers,
		newNotifier,
		newDispatch,
		func(ordersRepo *repository.OrderRepo, coord *assignment.Coordinator, logger logx.Logger) *orders.Processor {
			return orders.NewProcessor(ordersRepo, coord, logger)
		},
	)
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		handlers.NewDispatchUsecase,
		handlers.NewDispatchHandler,
		handlers.NewMatchUsecase,
		handlers.NewMatchHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		router.New,
		serverProvider,
	)
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(logger logx.Logger, cfg *config.Config, p *orders.Processor) (*kafka.Consumer, error) {
			return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrdersTopic, makeOrdersHandler(p))
		},
		func(repo *repository.AssignmentRepo, timers *scheduler.Timers, cfg *config.Config, logger logx.Logger) *Sweeper {
			return NewSweeper(repo, timers, cfg.Dispatch.SweepInterval, logger)
		},
	)
}
