// Package logging assembles the structured slog loggers used across tinct.
//
// It centralizes level and format selection, provides the console and JSON
// handlers, and exposes a no-op logger for tests and wiring code that
// cannot fail. Prefer these constructors over hand-rolled slog setup so
// every component emits the same shape of data.
package logging
