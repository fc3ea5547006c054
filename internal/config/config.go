package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Redis     Redis
	Kafka     Kafka
	Dispatch  Dispatch
	RateLimit RateLimit
	Pprof     Pprof
}

// DB stores database connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a Postgres connection string from the DB settings.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Redis stores cache connection settings.
type Redis struct {
	Addr string
}

// Kafka stores broker and topic settings. Empty brokers disable Kafka wiring.
type Kafka struct {
	Brokers     []string
	OrdersTopic string
	EventsTopic string
	GroupID     string
}

// Dispatch stores the tunables of the dispatch engine.
type Dispatch struct {
	// OfferTimeout is how long a courier has to respond to an offer.
	OfferTimeout time.Duration
	// RadiusKm is the default candidate search radius.
	RadiusKm float64
	// MaxResults is the default candidate list size.
	MaxResults int
	// MaxReassignments caps automatic reassignment attempts per order.
	MaxReassignments int
	// LocationTTL bounds the residency of a courier location record.
	LocationTTL time.Duration
	// ZoneTTL bounds the residency of a zone membership set.
	ZoneTTL time.Duration
	// AutoAssignRadiusKm is the proximity used by the location-update
	// opportunistic scan for waiting orders.
	AutoAssignRadiusKm float64
	// AutoAssignTimeout is the shortened offer timeout for auto-assignments.
	AutoAssignTimeout time.Duration
	// SweepInterval is how often pending expiries are reconciled.
	SweepInterval time.Duration
	// OperationTimeout bounds individual store operations.
	OperationTimeout time.Duration
}

// RateLimit stores settings for the per-client limiter on the location
// endpoint.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores the debug profiling server settings. Empty Addr disables it.
type Pprof struct {
	Addr string
	User string
	Pass string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      envInt("PORT", DefaultPort()),
		DB:        loadDB(),
		Redis:     Redis{Addr: envString("REDIS_ADDR", DefaultRedis().Addr)},
		Kafka:     loadKafka(),
		Dispatch:  loadDispatch(),
		RateLimit: loadRateLimit(),
		Pprof: Pprof{
			Addr: envString("PPROF_ADDR", ""),
			User: envString("PPROF_USER", ""),
			Pass: envString("PPROF_PASS", ""),
		},
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.Parse()

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Dispatch.OfferTimeout <= 0 {
		return nil, fmt.Errorf("invalid offer timeout: %s", cfg.Dispatch.OfferTimeout)
	}
	if cfg.Dispatch.RadiusKm <= 0 {
		return nil, fmt.Errorf("invalid search radius: %f", cfg.Dispatch.RadiusKm)
	}
	return cfg, nil
}

func loadDB() DB {
	def := DefaultDB()
	return DB{
		Host: envString("DB_HOST", def.Host),
		Port: envString("DB_PORT", def.Port),
		User: envString("DB_USER", def.User),
		Pass: envString("DB_PASS", def.Pass),
		Name: envString("DB_NAME", def.Name),
	}
}

func loadKafka() Kafka {
	def := DefaultKafka()
	brokers := def.Brokers
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = splitList(v)
	}
	return Kafka{
		Brokers:     brokers,
		OrdersTopic: envString("KAFKA_ORDERS_TOPIC", def.OrdersTopic),
		EventsTopic: envString("KAFKA_EVENTS_TOPIC", def.EventsTopic),
		GroupID:     envString("KAFKA_GROUP_ID", def.GroupID),
	}
}

func loadDispatch() Dispatch {
	def := DefaultDispatch()
	return Dispatch{
		OfferTimeout:       envDuration("DISPATCH_OFFER_TIMEOUT", def.OfferTimeout),
		RadiusKm:           envFloat("DISPATCH_RADIUS_KM", def.RadiusKm),
		MaxResults:         envInt("DISPATCH_MAX_RESULTS", def.MaxResults),
		MaxReassignments:   envInt("DISPATCH_MAX_REASSIGNMENTS", def.MaxReassignments),
		LocationTTL:        envDuration("DISPATCH_LOCATION_TTL", def.LocationTTL),
		ZoneTTL:            envDuration("DISPATCH_ZONE_TTL", def.ZoneTTL),
		AutoAssignRadiusKm: envFloat("DISPATCH_AUTO_ASSIGN_RADIUS_KM", def.AutoAssignRadiusKm),
		AutoAssignTimeout:  envDuration("DISPATCH_AUTO_ASSIGN_TIMEOUT", def.AutoAssignTimeout),
		SweepInterval:      envDuration("DISPATCH_SWEEP_INTERVAL", def.SweepInterval),
		OperationTimeout:   envDuration("DISPATCH_OPERATION_TIMEOUT", def.OperationTimeout),
	}
}

func loadRateLimit() RateLimit {
	def := DefaultRateLimit()
	return RateLimit{
		Enabled:    envBool("RATE_LIMIT_ENABLED", def.Enabled),
		Rate:       envFloat("RATE_LIMIT_RATE", def.Rate),
		Burst:      envInt("RATE_LIMIT_BURST", def.Burst),
		TTL:        envDuration("RATE_LIMIT_TTL", def.TTL),
		MaxBuckets: envInt("RATE_LIMIT_MAX_BUCKETS", def.MaxBuckets),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
