package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Namespace separates the state of different clients sharing one server
	Namespace string

	PoolSize     int
	MinIdleConns int

	// DialTimeout bounds connecting and the initial ping
	DialTimeout time.Duration

	// TTL applies to every key; zero keeps keys until deleted
	TTL time.Duration
}

// DefaultConfig returns defaults sized for a single CLI process
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		Namespace:    "default",
		PoolSize:     2,
		MinIdleConns: 0,
		DialTimeout:  5 * time.Second,
	}
}
