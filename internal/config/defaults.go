package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch",
}

var defaultRedis = Redis{
	Addr: "localhost:6379",
}

var defaultKafka = Kafka{
	Brokers:     nil,
	OrdersTopic: "orders.events",
	EventsTopic: "dispatch.events",
	GroupID:     "dispatch-engine",
}

var defaultDispatch = Dispatch{
	OfferTimeout:       120 * time.Second,
	RadiusKm:           5.0,
	MaxResults:         5,
	MaxReassignments:   3,
	LocationTTL:        time.Hour,
	ZoneTTL:            time.Hour,
	AutoAssignRadiusKm: 3.0,
	AutoAssignTimeout:  45 * time.Second,
	SweepInterval:      30 * time.Second,
	OperationTimeout:   3 * time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    false,
	Rate:       5,
	Burst:      10,
	TTL:        10 * time.Minute,
	MaxBuckets: 100_000,
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultRedis returns the default cache settings.
func DefaultRedis() Redis {
	return defaultRedis
}

// DefaultKafka returns the default Kafka settings.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultDispatch returns the default dispatch engine settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultRateLimit returns the default rate limiter settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}
