package metrics

import "github.com/prometheus/client_golang/prometheus"

// InitializeMetrics pre-populates the expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"success", "cache_hit", "error", "stale"} {
		ThumbnailLoadsTotal.WithLabelValues(status)
	}

	for _, field := range []string{"rating", "color", "selection"} {
		MetadataChangesTotal.WithLabelValues(field)
	}

	for _, gesture := range []string{"click_thumbnail", "click_filename", "drag", "context_menu", "key"} {
		InteractionsTotal.WithLabelValues(gesture)
	}

	states := []string{"initializing", "loading_thumbnail", "ready", "error", "disposed"}
	for _, from := range states {
		for _, to := range states {
			if from != to {
				TileStateTransitionsTotal.WithLabelValues(from, to)
			}
		}
	}

	for _, op := range []string{"get_item", "set_rating", "set_color", "list_by_rating", "list_by_color"} {
		StoreQueriesTotal.WithLabelValues(op, "success")
		StoreQueriesTotal.WithLabelValues(op, "error")
		StoreQueryDuration.WithLabelValues(op)
	}
}

// ObserveStoreQuery returns a completion func recording one store
// operation's duration and status. Usage:
//
//	done := metrics.ObserveStoreQuery("set_rating")
//	...
//	done(err)
func ObserveStoreQuery(operation string) func(error) {
	timer := prometheus.NewTimer(StoreQueryDuration.WithLabelValues(operation))
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		StoreQueriesTotal.WithLabelValues(operation, status).Inc()
		timer.ObserveDuration()
	}
}
