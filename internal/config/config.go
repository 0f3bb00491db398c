package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"asset-tiles/internal/logging"
)

// Snapshot holds every tunable the tile engine reads. It is populated once
// at startup and treated as read-only afterwards; components receive it by
// value or keep a pointer but never write through it.
type Snapshot struct {
	// Thumbnail loading
	DebounceInterval time.Duration // resize debounce window
	AsyncLoading     bool          // decode on the worker pool instead of inline
	LoadTimeout      time.Duration // async decode deadline, 0 disables
	ThumbnailQuality int           // 1-100, for re-encoded cache entries
	ThumbnailFormat  string        // "jpeg", "webp" or "png"
	UseVips          bool          // try the libvips fast path first

	// Metadata tracking
	BatchUpdates bool          // buffer rating/color edits
	BatchWindow  time.Duration // commit delay under batch mode
	HistoryLimit int           // max retained change records per tile

	// Resource pool
	MaxLiveTiles      int // soft cap on concurrently registered tiles
	CacheEntries      int // max cached thumbnails; 0 = derive from memory
	CacheMemoryBudget int64

	// Interaction
	DragThreshold int // Manhattan distance before a press becomes a drag
}

// Default returns the snapshot used when no config file or environment
// overrides are present.
func Default() Snapshot {
	return Snapshot{
		DebounceInterval: 40 * time.Millisecond,
		AsyncLoading:     true,
		LoadTimeout:      10 * time.Second,
		ThumbnailQuality: 80,
		ThumbnailFormat:  "webp",
		UseVips:          false,
		BatchUpdates:     false,
		BatchWindow:      150 * time.Millisecond,
		HistoryLimit:     50,
		MaxLiveTiles:     5000,
		CacheEntries:     2000,
		DragThreshold:    10,
	}
}

// fileConfig mirrors the TOML layout. Durations are plain millisecond
// integers so the file stays editable by hand.
type fileConfig struct {
	DebounceMs       *int    `toml:"debounce_ms"`
	AsyncLoading     *bool   `toml:"async_loading"`
	LoadTimeoutMs    *int    `toml:"load_timeout_ms"`
	ThumbnailQuality *int    `toml:"thumbnail_quality"`
	ThumbnailFormat  *string `toml:"thumbnail_format"`
	UseVips          *bool   `toml:"use_vips"`
	BatchUpdates     *bool   `toml:"batch_updates"`
	BatchWindowMs    *int    `toml:"batch_window_ms"`
	HistoryLimit     *int    `toml:"history_limit"`
	MaxLiveTiles     *int    `toml:"max_live_tiles"`
	CacheEntries     *int    `toml:"cache_entries"`
	DragThreshold    *int    `toml:"drag_threshold"`
}

// Load builds a Snapshot from defaults, an optional TOML file, and
// environment-variable overrides, then validates the result. A missing file
// is not an error; a malformed one is.
func Load(path string) (Snapshot, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Snapshot{}, fmt.Errorf("read config %s: %w", path, err)
			}
			logging.Debug("Config file %s not found, using defaults", path)
		} else {
			var raw fileConfig
			if err := toml.Unmarshal(data, &raw); err != nil {
				return Snapshot{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			applyFile(&cfg, raw)
			logging.Info("Loaded config from %s", path)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Snapshot{}, err
	}

	logging.Info("  debounce:        %s", cfg.DebounceInterval)
	logging.Info("  async loading:   %v", cfg.AsyncLoading)
	logging.Info("  load timeout:    %s", cfg.LoadTimeout)
	logging.Info("  batch updates:   %v (window %s)", cfg.BatchUpdates, cfg.BatchWindow)
	logging.Info("  max live tiles:  %d", cfg.MaxLiveTiles)
	logging.Info("  cache entries:   %d", cfg.CacheEntries)
	return cfg, nil
}

func applyFile(cfg *Snapshot, raw fileConfig) {
	if raw.DebounceMs != nil {
		cfg.DebounceInterval = time.Duration(*raw.DebounceMs) * time.Millisecond
	}
	if raw.AsyncLoading != nil {
		cfg.AsyncLoading = *raw.AsyncLoading
	}
	if raw.LoadTimeoutMs != nil {
		cfg.LoadTimeout = time.Duration(*raw.LoadTimeoutMs) * time.Millisecond
	}
	if raw.ThumbnailQuality != nil {
		cfg.ThumbnailQuality = *raw.ThumbnailQuality
	}
	if raw.ThumbnailFormat != nil {
		cfg.ThumbnailFormat = *raw.ThumbnailFormat
	}
	if raw.UseVips != nil {
		cfg.UseVips = *raw.UseVips
	}
	if raw.BatchUpdates != nil {
		cfg.BatchUpdates = *raw.BatchUpdates
	}
	if raw.BatchWindowMs != nil {
		cfg.BatchWindow = time.Duration(*raw.BatchWindowMs) * time.Millisecond
	}
	if raw.HistoryLimit != nil {
		cfg.HistoryLimit = *raw.HistoryLimit
	}
	if raw.MaxLiveTiles != nil {
		cfg.MaxLiveTiles = *raw.MaxLiveTiles
	}
	if raw.CacheEntries != nil {
		cfg.CacheEntries = *raw.CacheEntries
	}
	if raw.DragThreshold != nil {
		cfg.DragThreshold = *raw.DragThreshold
	}
}

func applyEnv(cfg *Snapshot) {
	if v := getEnvInt("TILE_DEBOUNCE_MS", -1); v >= 0 {
		cfg.DebounceInterval = time.Duration(v) * time.Millisecond
	}
	if v, ok := getEnvBool("TILE_ASYNC_LOADING"); ok {
		cfg.AsyncLoading = v
	}
	if v := getEnvInt("TILE_LOAD_TIMEOUT_MS", -1); v >= 0 {
		cfg.LoadTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := getEnvBool("TILE_BATCH_UPDATES"); ok {
		cfg.BatchUpdates = v
	}
	if v := getEnvInt("TILE_MAX_LIVE", -1); v >= 0 {
		cfg.MaxLiveTiles = v
	}
	if v := getEnvInt("TILE_CACHE_ENTRIES", -1); v >= 0 {
		cfg.CacheEntries = v
	}
	if v := os.Getenv("TILE_THUMBNAIL_FORMAT"); v != "" {
		cfg.ThumbnailFormat = v
	}
}

// Validate checks the snapshot for wiring bugs. It is the one place in the
// engine that fails fast instead of degrading: an out-of-range tunable means
// the embedding application is misconfigured, not that runtime data is bad.
func (s Snapshot) Validate() error {
	if s.DebounceInterval < 0 {
		return fmt.Errorf("config: debounce interval must be >= 0, got %s", s.DebounceInterval)
	}
	if s.LoadTimeout < 0 {
		return fmt.Errorf("config: load timeout must be >= 0, got %s", s.LoadTimeout)
	}
	if s.ThumbnailQuality < 1 || s.ThumbnailQuality > 100 {
		return fmt.Errorf("config: thumbnail quality must be in [1,100], got %d", s.ThumbnailQuality)
	}
	switch strings.ToLower(s.ThumbnailFormat) {
	case "jpeg", "jpg", "png", "webp":
	default:
		return fmt.Errorf("config: unsupported thumbnail format %q", s.ThumbnailFormat)
	}
	if s.BatchWindow <= 0 && s.BatchUpdates {
		return fmt.Errorf("config: batch window must be > 0 when batch updates are enabled, got %s", s.BatchWindow)
	}
	if s.HistoryLimit < 1 {
		return fmt.Errorf("config: history limit must be >= 1, got %d", s.HistoryLimit)
	}
	if s.MaxLiveTiles < 1 {
		return fmt.Errorf("config: max live tiles must be >= 1, got %d", s.MaxLiveTiles)
	}
	if s.CacheEntries < 0 {
		return fmt.Errorf("config: cache entries must be >= 0, got %d", s.CacheEntries)
	}
	if s.DragThreshold < 1 {
		return fmt.Errorf("config: drag threshold must be >= 1, got %d", s.DragThreshold)
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		logging.Warn("Invalid %s value %q, ignoring", key, os.Getenv(key))
	}
	return fallback
}

func getEnvBool(key string) (bool, bool) {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
