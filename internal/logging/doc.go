// Package logging assembles the structured slog loggers used across the
// pipeline daemon.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can tag log
// lines with job rows, cycle IDs, and stage names without threading those
// values by hand. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
