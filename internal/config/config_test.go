package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load() with missing file = %+v, want defaults", cfg)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.toml")
	content := `
debounce_ms = 25
async_loading = false
batch_updates = true
batch_window_ms = 200
max_live_tiles = 100
thumbnail_format = "jpeg"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DebounceInterval != 25*time.Millisecond {
		t.Errorf("DebounceInterval = %s, want 25ms", cfg.DebounceInterval)
	}
	if cfg.AsyncLoading {
		t.Error("AsyncLoading = true, want false")
	}
	if !cfg.BatchUpdates || cfg.BatchWindow != 200*time.Millisecond {
		t.Errorf("batch settings = %v/%s, want true/200ms", cfg.BatchUpdates, cfg.BatchWindow)
	}
	if cfg.MaxLiveTiles != 100 {
		t.Errorf("MaxLiveTiles = %d, want 100", cfg.MaxLiveTiles)
	}
	if cfg.ThumbnailFormat != "jpeg" {
		t.Errorf("ThumbnailFormat = %q, want jpeg", cfg.ThumbnailFormat)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("debounce_ms = [not an int"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with malformed TOML succeeded, want error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TILE_DEBOUNCE_MS", "15")
	t.Setenv("TILE_ASYNC_LOADING", "false")
	t.Setenv("TILE_MAX_LIVE", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DebounceInterval != 15*time.Millisecond {
		t.Errorf("DebounceInterval = %s, want 15ms", cfg.DebounceInterval)
	}
	if cfg.AsyncLoading {
		t.Error("AsyncLoading = true, want false via env")
	}
	if cfg.MaxLiveTiles != 7 {
		t.Errorf("MaxLiveTiles = %d, want 7", cfg.MaxLiveTiles)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"negative debounce", func(s *Snapshot) { s.DebounceInterval = -time.Millisecond }},
		{"zero quality", func(s *Snapshot) { s.ThumbnailQuality = 0 }},
		{"quality over 100", func(s *Snapshot) { s.ThumbnailQuality = 101 }},
		{"bad format", func(s *Snapshot) { s.ThumbnailFormat = "tiff" }},
		{"batch window zero with batching", func(s *Snapshot) { s.BatchUpdates = true; s.BatchWindow = 0 }},
		{"zero history", func(s *Snapshot) { s.HistoryLimit = 0 }},
		{"zero live tiles", func(s *Snapshot) { s.MaxLiveTiles = 0 }},
		{"negative cache", func(s *Snapshot) { s.CacheEntries = -1 }},
		{"zero drag threshold", func(s *Snapshot) { s.DragThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() succeeded, want error")
			}
		})
	}
}
