package auth

import "time"

// Config holds reconciler configuration.
type Config struct {
	// CookieName is the identity cookie carrying the session id.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"devscout_session"`

	// CookieTTL is the identity cookie lifetime, refreshed only when a
	// session is created, not on every request.
	CookieTTL time.Duration `env:"SESSION_COOKIE_TTL" envDefault:"168h"`

	// SecureCookies enables the Secure flag on the identity cookie.
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	// CookieAwaitAttempts bounds the cold-start polling loop for
	// deferred cookie sources.
	CookieAwaitAttempts int `env:"COOKIE_AWAIT_ATTEMPTS" envDefault:"3"`

	// CookieAwaitInterval is the fixed sleep between polling attempts.
	CookieAwaitInterval time.Duration `env:"COOKIE_AWAIT_INTERVAL" envDefault:"200ms"`
}

// DefaultConfig returns the default reconciler configuration: a 7-day
// cookie matching the session TTL and a three-attempt cold-start poll.
func DefaultConfig() Config {
	return Config{
		CookieName:          "devscout_session",
		CookieTTL:           7 * 24 * time.Hour,
		CookieAwaitAttempts: 3,
		CookieAwaitInterval: 200 * time.Millisecond,
	}
}
