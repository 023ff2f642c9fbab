// Package logging assembles structured slog loggers and formatting helpers used
// across framecast services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can automatically
// tag log lines with project IDs, stages, correlation and operation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Logs default to stderr so CLI commands can keep stdout for JSON results.
package logging
