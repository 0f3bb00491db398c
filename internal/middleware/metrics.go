package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"asset-tiles/internal/metrics"
)

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsConfig controls which paths are excluded from request metrics.
type MetricsConfig struct {
	SkipPaths []string
}

// DefaultMetricsConfig skips the scrape and probe endpoints.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns middleware recording request counts, latency, and
// in-flight gauge.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := &metricsResponseWriter{w, http.StatusOK}
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath collapses deep path segments (item paths) into a
// placeholder to keep label cardinality bounded.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 3 {
			parts[i] = "{path}"
			return strings.Join(parts[:i+1], "/")
		}
	}
	return path
}
