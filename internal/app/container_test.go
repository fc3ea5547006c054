package app

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/scheduler"
	"courier-dispatch/internal/service/assignment"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/testutil/testlog"
	"courier-dispatch/internal/transport/kafka"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:  8080,
		Redis: config.Redis{Addr: "localhost:6379"},
		Dispatch: config.Dispatch{
			OfferTimeout:     2 * time.Minute,
			RadiusKm:         5,
			MaxResults:       10,
			MaxReassignments: 3,
			LocationTTL:      time.Hour,
			ZoneTTL:          time.Hour,
			SweepInterval:    30 * time.Second,
			OperationTimeout: 3 * time.Second,
		},
	}
}

func setupTestContainer(t *testing.T) *dig.Container {
	t.Helper()

	c := dig.New()

	providers := []struct {
		name     string
		provider any
	}{
		{"context", func() context.Context { return context.Background() }},
		{"logger", func() logx.Logger { return logx.Nop() }},
		{"config", func() *config.Config { return testConfig() }},
		{"pgxpool", func() *pgxpool.Pool { return &pgxpool.Pool{} }},
		{"metrics", newMetrics},
	}

	for _, p := range providers {
		err := c.Provide(p.provider)
		require.NoErrorf(t, err, "provide %s", p.name)
	}

	require.NoError(t, registerCache(c))
	require.NoError(t, registerService(c))
	require.NoError(t, registerHTTP(c))
	require.NoError(t, registerWorker(c))

	return c
}

func verifyServer(t *testing.T, srv *http.Server) {
	t.Helper()

	require.NotNil(t, srv, "http.Server is nil")
	require.Equal(t, ":8080", srv.Addr)
	require.Greater(t, srv.ReadHeaderTimeout, time.Duration(0))
	require.Greater(t, srv.ReadTimeout, time.Duration(0))
	require.Greater(t, srv.WriteTimeout, time.Duration(0))
	require.Greater(t, srv.IdleTimeout, time.Duration(0))
}

func TestContainer_ProvidesHttpServerAndHandlers(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)

	err := c.Invoke(func(
		srv *http.Server,
		base *handlers.Handlers,
		dispatchHandler *handlers.DispatchHandler,
		matchHandler *handlers.MatchHandler,
	) {
		verifyServer(t, srv)
		require.NotNil(t, base)
		require.NotNil(t, dispatchHandler)
		require.NotNil(t, matchHandler)
	})
	require.NoError(t, err)
}

func TestContainer_ProvidesDispatchPair(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)

	err := c.Invoke(func(
		svc *assignment.Service,
		coord *assignment.Coordinator,
		timers *scheduler.Timers,
		processor *orders.Processor,
	) {
		require.NotNil(t, svc)
		require.NotNil(t, coord)
		require.NotNil(t, timers)
		require.NotNil(t, processor)
	})
	require.NoError(t, err)
}

func TestContainer_WorkerWithoutKafkaGetsNilConsumer(t *testing.T) {
	t.Parallel()

	c := setupTestContainer(t)

	err := c.Invoke(func(consumer *kafka.Consumer, sweeper *Sweeper) {
		require.Nil(t, consumer)
		require.NotNil(t, sweeper)
	})
	require.NoError(t, err)
}

func TestProvideAll_Success(t *testing.T) {
	t.Parallel()

	c := dig.New()

	err := provideAll(c,
		func() context.Context { return context.Background() },
		func() time.Duration { return 3 * time.Second },
	)
	require.NoError(t, err)

	err = c.Invoke(func(ctx context.Context, d time.Duration) {
		require.NotNil(t, ctx)
		require.Equal(t, 3*time.Second, d)
	})
	require.NoError(t, err)
}

func TestProvideAll_InvalidProvider(t *testing.T) {
	t.Parallel()

	c := dig.New()

	type bad struct{}
	err := provideAll(c, bad{})
	require.Error(t, err)
}

func TestRegisterCollector_SurvivesDoubleRegistration(t *testing.T) {
	t.Parallel()

	first := registerCollector(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "container_test_double_registration_total",
	}))
	second := registerCollector(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "container_test_double_registration_total",
	}))
	require.Same(t, first, second)
}

func TestRegisterDb_UsesDbConnectAndProvidesPool(t *testing.T) {
	t.Parallel()

	c := dig.New()
	ctx := context.Background()

	cfg := testConfig()
	cfg.DB = config.DB{
		Host: "localhost",
		Port: "5432",
		User: "user",
		Pass: "pass",
		Name: "db",
	}

	require.NoError(t, c.Provide(func() context.Context { return ctx }))
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))

	stubPool := &pgxpool.Pool{}

	stubConnect := func(
		gotCtx context.Context,
		dsn string,
		retries int,
		delay time.Duration,
	) (*pgxpool.Pool, error) {
		require.Equal(t, ctx, gotCtx)
		require.Equal(t, cfg.DB.DSN(), dsn)
		require.Equal(t, 10, retries)
		require.Equal(t, time.Second, delay)
		return stubPool, nil
	}

	err := registerDb(c, stubConnect)
	require.NoError(t, err)

	err = c.Invoke(func(pool *pgxpool.Pool) {
		require.Equal(t, stubPool, pool)
	})
	require.NoError(t, err)
}

func TestRegisterDb_ConnectErrorSurfacesOnInvoke(t *testing.T) {
	t.Parallel()

	c := dig.New()

	require.NoError(t, c.Provide(func() context.Context { return context.Background() }))
	require.NoError(t, c.Provide(func() *config.Config { return testConfig() }))

	err := registerDb(c, func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error) {
		return nil, fmt.Errorf("db failed")
	})
	require.NoError(t, err)

	err = c.Invoke(func(pool *pgxpool.Pool) {
		_ = pool
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "db failed")
}

func TestContainerBuilder_MustBuild_LogsFatalOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	builder := NewContainerBuilder().
		WithDBConnect(func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error) {
			return &pgxpool.Pool{}, nil
		}).
		WithLogFatalf(func(format string, args ...interface{}) {
			require.FailNowf(t, "logFatalf must not be called", format, args...)
		})

	c := builder.MustBuild(ctx)
	require.NotNil(t, c)
}

func TestNewTimeoutFire_SwallowsAndLogsHandlerError(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	var fired []string
	fire := newTimeoutFire(func(_ context.Context, id string) error {
		fired = append(fired, id)
		return fmt.Errorf("store gone")
	}, rec.Logger())

	fire(context.Background(), "as-1")

	require.Equal(t, []string{"as-1"}, fired)
	require.True(t, hasMsg(rec.Entries(), "handle offer timeout"))
}

func TestNewTimeoutFire_QuietOnSuccess(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	fire := newTimeoutFire(func(context.Context, string) error { return nil }, rec.Logger())

	fire(context.Background(), "as-1")
	require.Empty(t, rec.Entries())
}
