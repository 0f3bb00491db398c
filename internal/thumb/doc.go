// Package thumb loads and scales one tile's preview thumbnail.
//
// The loader is a small state machine (initializing, loading, ready, error,
// disposed). Loads consult the shared cache first, then decode either
// inline or on a worker goroutine. Resize requests are debounced so a burst
// of size changes decodes once, and a monotonic request id discards results
// from superseded or disposed requests.
package thumb
