// Package config loads and validates the tunables snapshot that
// parameterizes the tile engine: debounce intervals, cache sizes, batching
// behavior, and thumbnail encoding options.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional TOML file, and TILE_* environment variables. The resulting
// Snapshot is validated once and read-only thereafter.
package config
