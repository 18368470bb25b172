// Package logger builds structured slog loggers with a small set of
// options and domain attribute helpers.
//
// Production defaults are JSON output at Info level for log
// aggregation; development flips to text at Debug. The attribute
// helpers (UserID, SessionID, Credits, ...) keep field names consistent
// across the codebase so store failures and quota events are queryable.
package logger
