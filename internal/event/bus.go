package event

import (
	"sync"
	"weak"

	"asset-tiles/internal/logging"
)

// Kind names one of the bus's event channels. The set is closed; components
// publish and subscribe only to these.
type Kind string

const (
	// ThumbnailLoaded carries (path string, bitmap image.Image).
	ThumbnailLoaded Kind = "thumbnail-loaded"
	// ThumbnailError carries (path string, message string).
	ThumbnailError Kind = "thumbnail-error"
	// MetadataChanged carries (field string, value any).
	MetadataChanged Kind = "metadata-changed"
	// Interaction carries (gesture string, payload any).
	Interaction Kind = "interaction"
	// SizeChanged carries (width int, height int).
	SizeChanged Kind = "size-changed"
	// StateChanged carries (from string, to string).
	StateChanged Kind = "state-changed"
	// DataUpdated carries (itemPath string).
	DataUpdated Kind = "data-updated"
)

// Handler receives the payload of a published event.
type Handler func(payload ...any)

// Subscription ties a handler to a bus channel. The bus holds it only
// weakly: the subscriber must keep the returned *Subscription reachable for
// as long as it wants deliveries. Dropping the last strong reference lapses
// the subscription silently.
type Subscription struct {
	kind Kind
	fn   Handler
	id   uint64
}

// Kind returns the channel this subscription listens on.
func (s *Subscription) Kind() Kind { return s.kind }

// Bus is a synchronous publish/subscribe hub. Delivery order between
// subscribers is unspecified; a panicking subscriber never prevents the
// remaining subscribers from being invoked.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Kind]map[uint64]weak.Pointer[Subscription]
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind]map[uint64]weak.Pointer[Subscription])}
}

// Subscribe registers fn under kind and returns the owning Subscription.
// It never fails; the bool-returning wrapper TrySubscribe exists for callers
// that only care about success.
func (b *Bus) Subscribe(kind Kind, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{kind: kind, fn: fn, id: b.nextID}
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[uint64]weak.Pointer[Subscription])
	}
	b.subs[kind][sub.id] = weak.Make(sub)
	return sub
}

// TrySubscribe is Subscribe with an explicit success flag. It fails only on
// a nil handler, which would otherwise register a subscription that panics
// on every publish.
func (b *Bus) TrySubscribe(kind Kind, fn Handler) (*Subscription, bool) {
	if fn == nil {
		return nil, false
	}
	return b.Subscribe(kind, fn), true
}

// Unsubscribe removes sub from the bus. It is idempotent and returns true
// even when sub was never (or is no longer) registered.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.subs[sub.kind]; ok {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(b.subs, sub.kind)
		}
	}
	return true
}

// Publish delivers payload to every live subscriber of kind and returns the
// number successfully invoked. Lapsed (collected) subscriptions are pruned
// as they are encountered. A subscriber panic is recovered and logged; the
// remaining subscribers still run.
func (b *Bus) Publish(kind Kind, payload ...any) int {
	b.mu.Lock()
	var handlers []Handler
	if m, ok := b.subs[kind]; ok {
		for id, wp := range m {
			sub := wp.Value()
			if sub == nil {
				delete(m, id)
				continue
			}
			handlers = append(handlers, sub.fn)
		}
		if len(m) == 0 {
			delete(b.subs, kind)
		}
	}
	b.mu.Unlock()

	delivered := 0
	for _, fn := range handlers {
		if b.invoke(kind, fn, payload) {
			delivered++
		}
	}
	return delivered
}

func (b *Bus) invoke(kind Kind, fn Handler, payload []any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("event: subscriber for %s panicked: %v", kind, r)
			ok = false
		}
	}()
	fn(payload...)
	return true
}

// SubscriberCount reports the number of live subscriptions for kind,
// pruning any that have lapsed.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.subs[kind]
	if !ok {
		return 0
	}
	for id, wp := range m {
		if wp.Value() == nil {
			delete(m, id)
		}
	}
	return len(m)
}

// Clear drops every subscription on the bus.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Kind]map[uint64]weak.Pointer[Subscription])
}
