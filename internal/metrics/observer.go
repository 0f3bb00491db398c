package metrics

import (
	"fmt"

	"asset-tiles/internal/event"
)

// PerformanceObserver subscribes to a tile event bus and records lifecycle
// activity into the Prometheus metrics declared in this package. It is the
// sole consumer of the load and transition events for metric purposes, so
// counts stay single regardless of how many components publish.
type PerformanceObserver struct {
	bus  *event.Bus
	subs []*event.Subscription
}

// NewPerformanceObserver attaches an observer to bus. The observer holds its
// subscriptions strongly; call Close to detach.
func NewPerformanceObserver(bus *event.Bus) *PerformanceObserver {
	o := &PerformanceObserver{bus: bus}

	o.subs = append(o.subs,
		bus.Subscribe(event.ThumbnailLoaded, func(payload ...any) {
			ThumbnailLoadsTotal.WithLabelValues("success").Inc()
		}),
		bus.Subscribe(event.ThumbnailError, func(payload ...any) {
			ThumbnailLoadsTotal.WithLabelValues("error").Inc()
		}),
		bus.Subscribe(event.StateChanged, func(payload ...any) {
			if len(payload) >= 2 {
				TileStateTransitionsTotal.WithLabelValues(
					payloadString(payload[0]), payloadString(payload[1])).Inc()
			}
		}),
		bus.Subscribe(event.MetadataChanged, func(payload ...any) {
			if len(payload) >= 1 {
				MetadataChangesTotal.WithLabelValues(payloadString(payload[0])).Inc()
			}
		}),
		bus.Subscribe(event.Interaction, func(payload ...any) {
			if len(payload) >= 1 {
				InteractionsTotal.WithLabelValues(payloadString(payload[0])).Inc()
			}
		}),
	)
	return o
}

// Close detaches the observer from the bus.
func (o *PerformanceObserver) Close() {
	for _, sub := range o.subs {
		o.bus.Unsubscribe(sub)
	}
	o.subs = nil
}

func payloadString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
