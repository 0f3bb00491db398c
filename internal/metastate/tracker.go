package metastate

import (
	"sync"
	"time"

	"asset-tiles/internal/config"
	"asset-tiles/internal/event"
	"asset-tiles/internal/itemstore"
	"asset-tiles/internal/logging"
	"asset-tiles/internal/metrics"
)

// State is the tracker lifecycle state.
type State string

const (
	// Uninitialized means no item is bound; all fields hold defaults.
	Uninitialized State = "uninitialized"
	// Ready means an item is bound and the snapshot reflects it.
	Ready State = "ready"
)

// ChangeKind names one mutable metadata field.
type ChangeKind string

const (
	// KindRating is the 0-5 star rating.
	KindRating ChangeKind = "rating"
	// KindColor is the color tag string.
	KindColor ChangeKind = "color"
	// KindSelection is the transient selection flag.
	KindSelection ChangeKind = "selection"
)

// Change records one committed metadata edit, keeping the previous value so
// it can be rolled back.
type Change struct {
	Kind     ChangeKind
	Value    any
	Previous any
	At       time.Time
}

// Snapshot is an immutable copy of the full metadata triple.
type Snapshot struct {
	Rating   int
	ColorTag string
	Selected bool
	ItemPath string
	TakenAt  time.Time
}

// RecordAccessor is the externally-owned persisted record the tracker
// writes through to. itemstore.Accessor implements it.
type RecordAccessor interface {
	Rating() int
	SetRating(int) error
	ColorTag() string
	SetColorTag(string) error
}

var _ RecordAccessor = (*itemstore.Accessor)(nil)

// Listener observes committed changes of one kind.
type Listener func(kind ChangeKind, value any)

// Tracker is the authoritative in-memory view of one item's rating, color
// tag, and selection. All mutators are serialized behind a single lock;
// edits may arrive from worker callbacks as well as direct calls.
type Tracker struct {
	mu  sync.Mutex
	cfg config.Snapshot
	bus *event.Bus

	state    State
	itemPath string
	record   RecordAccessor

	rating   int
	colorTag string
	selected bool

	history   []Change
	listeners map[ChangeKind][]Listener

	// batch mode
	pending    map[ChangeKind]any
	batchTimer *time.Timer
}

// NewTracker creates an unbound tracker publishing on bus.
func NewTracker(bus *event.Bus, cfg config.Snapshot) *Tracker {
	return &Tracker{
		cfg:       cfg,
		bus:       bus,
		state:     Uninitialized,
		listeners: make(map[ChangeKind][]Listener),
		pending:   make(map[ChangeKind]any),
	}
}

// State returns the tracker lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetItem binds the tracker to an item record, loading rating and color
// from it, or resets to defaults when record is nil. Publishes data-updated.
func (t *Tracker) SetItem(itemPath string, record RecordAccessor) {
	t.mu.Lock()
	flushNotify := t.flushPendingLocked()

	t.itemPath = itemPath
	t.record = record
	t.history = t.history[:0]

	if record == nil && itemPath == "" {
		t.rating = 0
		t.colorTag = ""
		t.selected = false
		t.state = Uninitialized
	} else {
		if record != nil {
			t.rating = itemstore.ClampRating(record.Rating())
			t.colorTag = record.ColorTag()
		} else {
			t.rating = 0
			t.colorTag = ""
		}
		t.selected = false
		t.state = Ready
	}
	path := t.itemPath
	t.mu.Unlock()

	if flushNotify != nil {
		flushNotify()
	}
	if t.bus != nil {
		t.bus.Publish(event.DataUpdated, path)
	}
}

// Rating returns the current rating.
func (t *Tracker) Rating() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rating
}

// SetRating commits a rating change, clamped to [0, 5]. Setting the current
// value is a no-op: no history entry, no notification.
func (t *Tracker) SetRating(rating int) {
	rating = itemstore.ClampRating(rating)

	t.mu.Lock()
	if rating == t.rating {
		t.mu.Unlock()
		return
	}
	previous := t.rating
	t.rating = rating
	t.appendHistoryLocked(Change{Kind: KindRating, Value: rating, Previous: previous, At: time.Now()})
	notify := t.commitLocked(KindRating, rating)
	t.mu.Unlock()

	notify()
}

// ColorTag returns the current color tag.
func (t *Tracker) ColorTag() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.colorTag
}

// SetColorTag commits a color tag change. The empty string clears the tag;
// setting the current value is a no-op.
func (t *Tracker) SetColorTag(tag string) {
	t.mu.Lock()
	if tag == t.colorTag {
		t.mu.Unlock()
		return
	}
	previous := t.colorTag
	t.colorTag = tag
	t.appendHistoryLocked(Change{Kind: KindColor, Value: tag, Previous: previous, At: time.Now()})
	notify := t.commitLocked(KindColor, tag)
	t.mu.Unlock()

	notify()
}

// Selected returns the current selection flag.
func (t *Tracker) Selected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// SetSelected commits a selection change. Selection is never batched:
// it must feel instantaneous regardless of batch mode.
func (t *Tracker) SetSelected(selected bool) {
	t.mu.Lock()
	if selected == t.selected {
		t.mu.Unlock()
		return
	}
	previous := t.selected
	t.selected = selected
	t.appendHistoryLocked(Change{Kind: KindSelection, Value: selected, Previous: previous, At: time.Now()})
	notify := t.emitLocked(KindSelection, selected)
	t.mu.Unlock()

	notify()
}

// GetSnapshot returns an atomic copy of the full metadata triple.
func (t *Tracker) GetSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Rating:   t.rating,
		ColorTag: t.colorTag,
		Selected: t.selected,
		ItemPath: t.itemPath,
		TakenAt:  time.Now(),
	}
}

// ApplySnapshot restores a previously captured triple. It re-enters the
// individual setters so per-field listeners fire for each field that
// actually changes.
func (t *Tracker) ApplySnapshot(snap Snapshot) {
	t.SetRating(snap.Rating)
	t.SetColorTag(snap.ColorTag)
	t.SetSelected(snap.Selected)
}

// AddListener registers fn for committed changes of kind.
func (t *Tracker) AddListener(kind ChangeKind, fn Listener) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners[kind] = append(t.listeners[kind], fn)
}

// History returns a copy of the change history, oldest first.
func (t *Tracker) History() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Change, len(t.history))
	copy(out, t.history)
	return out
}

// RollbackLast reverts the most recent change, optionally filtered to one
// kind, by reapplying its previous value and removing it from history.
// Returns false when no matching record exists.
func (t *Tracker) RollbackLast(kinds ...ChangeKind) bool {
	t.mu.Lock()

	idx := -1
	for i := len(t.history) - 1; i >= 0; i-- {
		if len(kinds) == 0 || t.history[i].Kind == kinds[0] {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}

	change := t.history[idx]
	t.history = append(t.history[:idx], t.history[idx+1:]...)

	var notify func()
	switch change.Kind {
	case KindRating:
		t.rating = change.Previous.(int)
		notify = t.commitLocked(KindRating, t.rating)
	case KindColor:
		t.colorTag = change.Previous.(string)
		notify = t.commitLocked(KindColor, t.colorTag)
	case KindSelection:
		t.selected = change.Previous.(bool)
		notify = t.emitLocked(KindSelection, t.selected)
	}
	t.mu.Unlock()

	metrics.MetadataRollbacksTotal.Inc()
	if notify != nil {
		notify()
	}
	return true
}

// ForceUpdate commits any batched changes immediately.
func (t *Tracker) ForceUpdate() {
	t.mu.Lock()
	notify := t.flushPendingLocked()
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Cleanup flushes pending batched changes, clears history and listeners,
// and resets the tracker to Uninitialized. Safe to call multiple times.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	notify := t.flushPendingLocked()
	t.history = nil
	t.listeners = make(map[ChangeKind][]Listener)
	t.record = nil
	t.itemPath = ""
	t.rating = 0
	t.colorTag = ""
	t.selected = false
	t.state = Uninitialized
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// appendHistoryLocked adds a change record, pruning the oldest entries past
// the configured limit.
func (t *Tracker) appendHistoryLocked(change Change) {
	t.history = append(t.history, change)
	if limit := t.cfg.HistoryLimit; limit > 0 && len(t.history) > limit {
		t.history = t.history[len(t.history)-limit:]
	}
}

// commitLocked routes a rating/color change either straight to write-through
// and notification or into the batch buffer. Returns the deferred
// notification work to run outside the lock.
func (t *Tracker) commitLocked(kind ChangeKind, value any) func() {
	if t.cfg.BatchUpdates {
		t.pending[kind] = value
		if t.batchTimer == nil {
			t.batchTimer = time.AfterFunc(t.cfg.BatchWindow, t.onBatchTimer)
		} else {
			t.batchTimer.Reset(t.cfg.BatchWindow)
		}
		return func() {}
	}

	t.writeThroughLocked(kind, value)
	return t.emitLocked(kind, value)
}

func (t *Tracker) onBatchTimer() {
	t.mu.Lock()
	notify := t.flushPendingLocked()
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// flushPendingLocked commits every buffered change: one write-through and
// one notification per field, using the final buffered value.
func (t *Tracker) flushPendingLocked() func() {
	if t.batchTimer != nil {
		t.batchTimer.Stop()
		t.batchTimer = nil
	}
	if len(t.pending) == 0 {
		return nil
	}

	var notifies []func()
	for kind, value := range t.pending {
		t.writeThroughLocked(kind, value)
		notifies = append(notifies, t.emitLocked(kind, value))
	}
	t.pending = make(map[ChangeKind]any)

	return func() {
		for _, fn := range notifies {
			fn()
		}
	}
}

// writeThroughLocked propagates a committed value to the external record,
// if one is bound. Failures are logged and counted, never raised: the
// in-memory state stays authoritative for the session.
func (t *Tracker) writeThroughLocked(kind ChangeKind, value any) {
	if t.record == nil {
		return
	}
	var err error
	switch kind {
	case KindRating:
		err = t.record.SetRating(value.(int))
	case KindColor:
		err = t.record.SetColorTag(value.(string))
	}
	if err != nil {
		metrics.MetadataWriteThroughErrors.Inc()
		logging.Warn("metadata write-through failed for %s (%s): %v", t.itemPath, kind, err)
	}
}

// emitLocked snapshots the listener list and returns the notification work
// to run outside the lock, so a listener can safely re-enter the tracker.
func (t *Tracker) emitLocked(kind ChangeKind, value any) func() {
	listeners := make([]Listener, len(t.listeners[kind]))
	copy(listeners, t.listeners[kind])
	bus := t.bus

	return func() {
		for _, fn := range listeners {
			fn(kind, value)
		}
		if bus != nil {
			bus.Publish(event.MetadataChanged, string(kind), value)
		}
	}
}
