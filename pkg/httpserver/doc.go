// Package httpserver wraps net/http with graceful shutdown and
// configurable timeouts. Run blocks until the context is cancelled or
// an interrupt/TERM signal arrives, then drains in-flight requests
// within the shutdown deadline. Errors are wrapped with ErrStart and
// ErrShutdown sentinels for errors.Is inspection.
package httpserver
