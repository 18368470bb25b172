// Package quota meters billable operations against a per-user credit
// balance.
//
// The ledger is a single flat pool per user: a non-negative integer
// created exactly once with the plan's initial grant and mutated only
// through atomic consume and grant operations. Concurrent consumes
// against the same user serialize at the store, so the sum of
// successful spends never exceeds the balance that existed before any
// of them started. A consume that the store cannot confirm fails
// closed; it is never treated as success.
//
// The record survives logout. A returning user keeps whatever balance
// they left with, and only an explicit data-erasure request removes it.
//
// Three Ledger implementations are provided: an in-memory one for tests
// and development, MongoDB (conditional FindOneAndUpdate on a single
// document), and PostgreSQL (single conditional UPDATE with the schema
// managed by goose migrations).
package quota
