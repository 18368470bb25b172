// Package mongo provides connection helpers for the MongoDB-backed
// session store and quota ledger: env-driven configuration, a retrying
// connect, and a healthcheck closure for readiness probes.
package mongo
