package memory

import (
	"log/slog"
	"runtime"
	"runtime/debug"

	"tinct/internal/logging"
)

// CacheClearer releases memory held by an external component, typically
// the colorizer backend's model cache.
type CacheClearer interface {
	ClearCache() error
}

// Gate guards batch processing against memory exhaustion. It reports
// current usage, frees what it can between items, and estimates the
// footprint of a pending image so callers can reclaim ahead of need.
type Gate struct {
	clearer CacheClearer
	logger  *slog.Logger
}

// NewGate returns a Gate that asks clearer to drop caches during
// reclaim. clearer may be nil when no external cache exists.
func NewGate(clearer CacheClearer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{clearer: clearer, logger: logger}
}

// Usage returns the fraction of physical memory in use, in [0, 1].
// It returns 0 on platforms where usage cannot be read.
func (g *Gate) Usage() float64 {
	return readUsage()
}

// ClearCache drops the external cache. Failures are logged and
// swallowed; cache clearing is best effort.
func (g *Gate) ClearCache() {
	if g.clearer == nil {
		return
	}
	if err := g.clearer.ClearCache(); err != nil {
		g.logger.Warn("cache clear failed", logging.Error(err))
	}
}

// ReclaimIfNeeded frees memory when usage exceeds threshold. It runs
// the garbage collector, returns heap pages to the OS, and clears the
// external cache. It reports whether a reclaim was performed.
func (g *Gate) ReclaimIfNeeded(threshold float64) bool {
	usage := g.Usage()
	if usage < threshold {
		return false
	}
	g.logger.Info("memory pressure, reclaiming",
		logging.Float64("usage", usage),
		logging.Float64("threshold", threshold))
	g.Reclaim()
	return true
}

// Reclaim unconditionally frees memory: GC, release to OS, drop caches.
func (g *Gate) Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
	g.ClearCache()
}

// Estimate returns the approximate bytes needed to colorize an image
// of the given dimensions. The estimate covers the decoded input, the
// latent working set, intermediate activations, and reference images,
// padded by half again for overhead.
func Estimate(width, height int) int64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	pixels := int64(width) * int64(height)
	input := pixels * 3 * 4
	latent := (pixels / 64) * 4 * 4
	activations := latent * 2
	references := input * 4
	total := input + latent + activations + references
	return total + total/2
}
