// Package pg provides connection helpers for the PostgreSQL-backed
// quota ledger: env-driven configuration, a pool connect with backoff,
// goose migrations routed through slog, and a healthcheck closure.
package pg
