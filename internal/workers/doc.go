// Package workers calculates worker pool sizes for the asynchronous
// thumbnail decode path.
//
// Counts derive from GOMAXPROCS so container CPU limits are respected, with
// a task-type multiplier and an optional hard cap. The DECODE_WORKERS
// environment variable overrides the calculation entirely.
package workers
