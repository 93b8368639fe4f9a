// Package memory tracks system memory pressure and reclaims caches
// between batch items so long runs do not exhaust the host.
package memory
