package metastate

import (
	"errors"
	"sync"
	"testing"
	"time"

	"asset-tiles/internal/config"
	"asset-tiles/internal/event"
)

// fakeRecord is an in-memory RecordAccessor counting write-throughs.
type fakeRecord struct {
	mu         sync.Mutex
	rating     int
	color      string
	ratingSets []int
	colorSets  []string
	failWrites bool
}

func (r *fakeRecord) Rating() int { r.mu.Lock(); defer r.mu.Unlock(); return r.rating }

func (r *fakeRecord) SetRating(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errors.New("store unavailable")
	}
	r.rating = n
	r.ratingSets = append(r.ratingSets, n)
	return nil
}

func (r *fakeRecord) ColorTag() string { r.mu.Lock(); defer r.mu.Unlock(); return r.color }

func (r *fakeRecord) SetColorTag(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errors.New("store unavailable")
	}
	r.color = s
	r.colorSets = append(r.colorSets, s)
	return nil
}

func (r *fakeRecord) RatingSets() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ratingSets...)
}

func newTestTracker(t *testing.T, mutate func(*config.Snapshot)) *Tracker {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return NewTracker(event.NewBus(), cfg)
}

func TestRatingClamp(t *testing.T) {
	tr := newTestTracker(t, nil)

	tests := []struct {
		in, want int
	}{
		{-5, 0}, {3, 3}, {99, 5},
	}
	for _, tt := range tests {
		tr.SetRating(tt.in)
		if got := tr.Rating(); got != tt.want {
			t.Errorf("SetRating(%d) stored %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNoOpOnUnchangedValue(t *testing.T) {
	tr := newTestTracker(t, nil)

	var notifications int
	tr.AddListener(KindRating, func(ChangeKind, any) { notifications++ })

	tr.SetRating(3)
	tr.SetRating(3)

	if got := len(tr.History()); got != 1 {
		t.Errorf("history length = %d, want 1 (second set is a no-op)", got)
	}
	if notifications != 1 {
		t.Errorf("notifications = %d, want 1", notifications)
	}
}

func TestWriteThrough(t *testing.T) {
	tr := newTestTracker(t, nil)
	rec := &fakeRecord{rating: 2, color: "blue"}
	tr.SetItem("/a.zip", rec)

	if tr.Rating() != 2 || tr.ColorTag() != "blue" {
		t.Fatalf("after SetItem, snapshot = %d/%q, want 2/blue", tr.Rating(), tr.ColorTag())
	}
	if tr.State() != Ready {
		t.Fatalf("state = %s, want ready", tr.State())
	}

	tr.SetRating(5)
	tr.SetColorTag("red")

	if rec.Rating() != 5 || rec.ColorTag() != "red" {
		t.Errorf("record = %d/%q, want 5/red (write-through)", rec.Rating(), rec.ColorTag())
	}
}

func TestSetItemNilResets(t *testing.T) {
	tr := newTestTracker(t, nil)
	tr.SetItem("/a.zip", &fakeRecord{rating: 4, color: "red"})
	tr.SetSelected(true)

	tr.SetItem("", nil)

	if tr.Rating() != 0 || tr.ColorTag() != "" || tr.Selected() {
		t.Errorf("after reset: %d/%q/%v, want 0/empty/false",
			tr.Rating(), tr.ColorTag(), tr.Selected())
	}
	if tr.State() != Uninitialized {
		t.Errorf("state = %s, want uninitialized", tr.State())
	}
}

func TestRollbackLast(t *testing.T) {
	tr := newTestTracker(t, nil)

	tr.SetRating(1)
	tr.SetRating(2)
	tr.SetRating(3)

	if !tr.RollbackLast() {
		t.Fatal("RollbackLast() = false, want true")
	}
	if got := tr.Rating(); got != 2 {
		t.Errorf("rating after rollback = %d, want 2", got)
	}
	if got := len(tr.History()); got != 2 {
		t.Errorf("history length after rollback = %d, want 2", got)
	}
}

func TestRollbackFilteredByKind(t *testing.T) {
	tr := newTestTracker(t, nil)

	tr.SetRating(4)
	tr.SetColorTag("red")

	if !tr.RollbackLast(KindRating) {
		t.Fatal("RollbackLast(rating) = false, want true")
	}
	if tr.Rating() != 0 {
		t.Errorf("rating = %d, want 0 (rolled back)", tr.Rating())
	}
	if tr.ColorTag() != "red" {
		t.Errorf("color = %q, want red (untouched)", tr.ColorTag())
	}
}

func TestRollbackEmptyHistory(t *testing.T) {
	tr := newTestTracker(t, nil)
	if tr.RollbackLast() {
		t.Error("RollbackLast() on empty history = true, want false")
	}
}

func TestHistoryBounded(t *testing.T) {
	tr := newTestTracker(t, func(c *config.Snapshot) { c.HistoryLimit = 3 })

	for i := 0; i <= 5; i++ {
		tr.SetRating(i)
	}
	hist := tr.History()
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3 (bounded)", len(hist))
	}
	// Newest retained: values 3, 4, 5.
	if hist[2].Value.(int) != 5 || hist[0].Value.(int) != 3 {
		t.Errorf("retained history = %v..%v, want 3..5", hist[0].Value, hist[2].Value)
	}
}

func TestBatchModeCoalesces(t *testing.T) {
	tr := newTestTracker(t, func(c *config.Snapshot) {
		c.BatchUpdates = true
		c.BatchWindow = 20 * time.Millisecond
	})
	rec := &fakeRecord{}
	tr.SetItem("/a.zip", rec)

	tr.SetRating(1)
	tr.SetRating(2)
	tr.SetRating(3)

	// Nothing written through until the batch window elapses.
	if sets := rec.RatingSets(); len(sets) != 0 {
		t.Fatalf("write-throughs before window = %v, want none", sets)
	}

	deadline := time.Now().Add(time.Second)
	for len(rec.RatingSets()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	sets := rec.RatingSets()
	if len(sets) != 1 || sets[0] != 3 {
		t.Errorf("write-throughs = %v, want exactly [3]", sets)
	}
}

func TestBatchModeForceUpdate(t *testing.T) {
	tr := newTestTracker(t, func(c *config.Snapshot) {
		c.BatchUpdates = true
		c.BatchWindow = time.Hour // never fires on its own
	})
	rec := &fakeRecord{}
	tr.SetItem("/a.zip", rec)

	tr.SetRating(1)
	tr.SetRating(4)
	tr.ForceUpdate()

	sets := rec.RatingSets()
	if len(sets) != 1 || sets[0] != 4 {
		t.Errorf("write-throughs after ForceUpdate = %v, want [4]", sets)
	}
}

func TestSelectionNeverBatched(t *testing.T) {
	tr := newTestTracker(t, func(c *config.Snapshot) {
		c.BatchUpdates = true
		c.BatchWindow = time.Hour
	})

	var notified bool
	tr.AddListener(KindSelection, func(_ ChangeKind, v any) { notified = v.(bool) })

	tr.SetSelected(true)
	if !notified {
		t.Error("selection change was not emitted immediately under batch mode")
	}
}

func TestApplySnapshotReenters(t *testing.T) {
	tr := newTestTracker(t, nil)

	var seen []ChangeKind
	tr.AddListener(KindRating, func(k ChangeKind, _ any) { seen = append(seen, k) })
	tr.AddListener(KindColor, func(k ChangeKind, _ any) { seen = append(seen, k) })
	tr.AddListener(KindSelection, func(k ChangeKind, _ any) { seen = append(seen, k) })

	tr.ApplySnapshot(Snapshot{Rating: 4, ColorTag: "green", Selected: true})

	if len(seen) != 3 {
		t.Errorf("listener invocations = %v, want all three kinds", seen)
	}
	if tr.Rating() != 4 || tr.ColorTag() != "green" || !tr.Selected() {
		t.Errorf("applied snapshot = %d/%q/%v, want 4/green/true",
			tr.Rating(), tr.ColorTag(), tr.Selected())
	}
}

func TestWriteThroughFailureDoesNotRaise(t *testing.T) {
	tr := newTestTracker(t, nil)
	tr.SetItem("/a.zip", &fakeRecord{failWrites: true})

	tr.SetRating(3) // must not panic

	if tr.Rating() != 3 {
		t.Errorf("in-memory rating = %d, want 3 despite failed write-through", tr.Rating())
	}
}

func TestCleanupResets(t *testing.T) {
	tr := newTestTracker(t, nil)
	tr.SetItem("/a.zip", &fakeRecord{rating: 3})
	tr.SetRating(5)

	tr.Cleanup()
	tr.Cleanup() // idempotent

	if tr.State() != Uninitialized {
		t.Errorf("state after cleanup = %s, want uninitialized", tr.State())
	}
	if len(tr.History()) != 0 {
		t.Error("history not cleared by cleanup")
	}
}

func TestBusPublishesMetadataChanged(t *testing.T) {
	bus := event.NewBus()
	tr := NewTracker(bus, config.Default())

	var field string
	sub := bus.Subscribe(event.MetadataChanged, func(payload ...any) {
		if len(payload) >= 1 {
			field = payload[0].(string)
		}
	})
	defer bus.Unsubscribe(sub)

	tr.SetRating(2)
	if field != "rating" {
		t.Errorf("bus saw field %q, want rating", field)
	}
}
