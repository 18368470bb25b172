package session

import "time"

// Config holds session configuration.
type Config struct {
	// TTL is the sliding expiry measured from last access.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`
}

// DefaultConfig returns the default session configuration: a 7-day
// sliding TTL matching the identity cookie lifetime.
func DefaultConfig() Config {
	return Config{
		TTL: 7 * 24 * time.Hour,
	}
}
