package cookie

import (
	"context"
	"time"
)

const (
	// DefaultAwaitAttempts bounds the cold-start polling loop.
	DefaultAwaitAttempts = 3
	// DefaultAwaitInterval is the fixed sleep between attempts.
	DefaultAwaitInterval = 200 * time.Millisecond
)

// Source is a cookie reader whose values appear asynchronously, such as
// a client-rendered component that has not finished its first
// browser round-trip yet. Lookup reports false while the value is not
// available, which is indistinguishable from the cookie being unset.
type Source interface {
	Lookup(name string) (string, bool)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(name string) (string, bool)

func (f SourceFunc) Lookup(name string) (string, bool) {
	return f(name)
}

// Await polls src for the named cookie up to attempts times, sleeping
// interval between tries. It exists solely to mask the window at process
// start where the browser has not replayed the cookie to the component
// yet; once the budget is exhausted the caller must treat the user as
// anonymous, not as an error. Non-positive attempts or interval fall
// back to the package defaults.
func Await(ctx context.Context, src Source, name string, attempts int, interval time.Duration) (string, bool) {
	if attempts <= 0 {
		attempts = DefaultAwaitAttempts
	}
	if interval <= 0 {
		interval = DefaultAwaitInterval
	}

	for i := range attempts {
		if value, ok := src.Lookup(name); ok {
			return value, true
		}

		// No sleep after the final attempt.
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(interval):
		}
	}

	return "", false
}
