package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"asset-tiles/internal/logging"
)

const (
	// DefaultCacheRatio is the fraction of the detected memory limit the
	// shared thumbnail cache may occupy. The rest is reserved for decode
	// buffers, goroutine stacks, and the embedding application.
	DefaultCacheRatio = 0.15

	// MinCacheEntries and MaxCacheEntries bound the derived entry count so a
	// tiny container still caches something useful and a huge host does not
	// hold tens of thousands of bitmaps.
	MinCacheEntries = 64
	MaxCacheEntries = 16384
)

// DetectLimit returns the process memory limit in bytes, or 0 when none is
// configured. GOMEMLIMIT takes precedence; MEMORY_LIMIT (container limit via
// the Downward API or similar) is the fallback.
func DetectLimit() int64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		return limit
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("No memory limit detected (GOMEMLIMIT unset, MEMORY_LIMIT unset)")
		return 0
	}
	limit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		return 0
	}
	return limit
}

// CacheBudget returns the byte budget for the shared thumbnail cache given a
// memory limit. THUMB_CACHE_RATIO overrides the default fraction. A zero
// limit yields a zero budget, meaning "caller picks a fixed entry count".
func CacheBudget(limit int64) int64 {
	if limit <= 0 {
		return 0
	}

	ratio := DefaultCacheRatio
	if ratioStr := os.Getenv("THUMB_CACHE_RATIO"); ratioStr != "" {
		if parsed, err := strconv.ParseFloat(ratioStr, 64); err == nil && parsed > 0 && parsed <= 1.0 {
			ratio = parsed
		} else {
			logging.Warn("THUMB_CACHE_RATIO %q out of range (0.0-1.0], using default %.2f", ratioStr, DefaultCacheRatio)
		}
	}

	budget := int64(float64(limit) * ratio)
	logging.Info("Thumbnail cache budget: %s (%.0f%% of %s limit)",
		FormatBytes(budget), ratio*100, FormatBytes(limit))
	return budget
}

// EntriesForBudget converts a byte budget into a cache entry count, assuming
// RGBA bitmaps at the given tile dimensions (width*height*4 bytes each).
// The result is clamped to [MinCacheEntries, MaxCacheEntries].
func EntriesForBudget(budget int64, tileWidth, tileHeight int) int {
	if budget <= 0 || tileWidth <= 0 || tileHeight <= 0 {
		return MinCacheEntries
	}

	perEntry := int64(tileWidth) * int64(tileHeight) * 4
	entries := budget / perEntry

	if entries < MinCacheEntries {
		return MinCacheEntries
	}
	if entries > MaxCacheEntries {
		return MaxCacheEntries
	}
	return int(entries)
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
