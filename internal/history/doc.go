// Package history archives finished batch runs to SQLite so past
// results survive the process.
package history
