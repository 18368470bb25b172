// Package redis provides connection helpers for the Redis-backed
// session store: env-driven configuration, a retrying connect, and a
// healthcheck closure for readiness probes.
package redis
