// Package middleware provides the HTTP middleware chain for the gallery
// service: access logging, Prometheus request metrics, and gzip
// compression of textual responses.
package middleware
