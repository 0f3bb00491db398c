// Package metrics provides Prometheus instrumentation for the asset-tiles
// engine. All metrics are prefixed with "asset_tiles_".
//
// The metrics fall into five groups:
//   - Tile lifecycle: live tile count, registrations, evictions, and state
//     transitions.
//   - Thumbnails: load counts by status, decode duration, shared cache
//     hits/misses and occupancy.
//   - Metadata: committed changes by field, rollbacks, write-through errors.
//   - Interaction: recognized gestures by kind.
//   - Gallery service: HTTP request counters and latency, store operation
//     counters and latency.
//
// PerformanceObserver wires the event bus to these metrics so that tile
// components stay free of instrumentation concerns.
package metrics
