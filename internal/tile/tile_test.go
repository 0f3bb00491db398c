package tile

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"asset-tiles/internal/config"
	"asset-tiles/internal/interaction"
	"asset-tiles/internal/media"
	"asset-tiles/internal/pool"
	"asset-tiles/internal/thumb"
)

// previewFixture writes a real decodable PNG preview next to a stub
// archive and returns the pair.
func previewFixture(t *testing.T) media.Handle {
	t.Helper()
	dir := t.TempDir()

	archive := filepath.Join(dir, "asset.zip")
	if err := os.WriteFile(archive, []byte("zip"), 0o644); err != nil {
		t.Fatalf("writing archive fixture: %v", err)
	}

	preview := filepath.Join(dir, "asset.png")
	f, err := os.Create(preview)
	if err != nil {
		t.Fatalf("creating preview fixture: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 32, 32))); err != nil {
		t.Fatalf("encoding preview fixture: %v", err)
	}
	f.Close()

	return media.Handle{ArchivePath: archive, PreviewPath: preview, Dir: dir}
}

type fakeRecord struct {
	mu     sync.Mutex
	rating int
	color  string
}

func (r *fakeRecord) Rating() int { r.mu.Lock(); defer r.mu.Unlock(); return r.rating }
func (r *fakeRecord) SetRating(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rating = n
	return nil
}
func (r *fakeRecord) ColorTag() string { r.mu.Lock(); defer r.mu.Unlock(); return r.color }
func (r *fakeRecord) SetColorTag(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.color = s
	return nil
}

func testConfig() config.Snapshot {
	cfg := config.Default()
	cfg.AsyncLoading = false
	cfg.DebounceInterval = 5 * time.Millisecond
	return cfg
}

func newTestTile(t *testing.T, handle media.Handle, record *fakeRecord, signals Signals) *Controller {
	t.Helper()
	c, err := New(pool.NewPool(testConfig()), testConfig(), Options{
		Handle:  handle,
		Size:    thumb.Size{W: 200, H: 240},
		Record:  record,
		Signals: signals,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(c.Cleanup)
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, testConfig(), Options{Size: thumb.Size{W: 100, H: 100}}); err == nil {
		t.Error("New() with nil pool succeeded, want error")
	}
	if _, err := New(pool.NewPool(testConfig()), testConfig(), Options{}); err == nil {
		t.Error("New() with zero size succeeded, want error")
	}
}

func TestThumbnailLoadsOnBind(t *testing.T) {
	c := newTestTile(t, previewFixture(t), nil, Signals{})

	if c.LoaderState() != thumb.Ready {
		t.Fatalf("loader state = %s, want ready", c.LoaderState())
	}
	if c.Thumbnail() == nil {
		t.Error("no thumbnail after synchronous bind")
	}
}

func TestClickSignals(t *testing.T) {
	var previews, opens int
	c := newTestTile(t, previewFixture(t), nil, Signals{
		PreviewRequested:     func(media.Handle) { previews++ },
		ArchiveOpenRequested: func(media.Handle) { opens++ },
	})

	// Thumbnail region: top of the 200x240 tile.
	c.HandlePress(interaction.PointerEvent{Pos: interaction.Point{X: 100, Y: 100}, Button: interaction.ButtonPrimary})
	c.HandleRelease(interaction.PointerEvent{Pos: interaction.Point{X: 100, Y: 100}, Button: interaction.ButtonPrimary})
	if previews != 1 {
		t.Errorf("preview requests = %d, want 1", previews)
	}

	// Filename band: bottom rows.
	c.HandlePress(interaction.PointerEvent{Pos: interaction.Point{X: 100, Y: 235}, Button: interaction.ButtonPrimary})
	c.HandleRelease(interaction.PointerEvent{Pos: interaction.Point{X: 100, Y: 235}, Button: interaction.ButtonPrimary})
	if opens != 1 {
		t.Errorf("archive open requests = %d, want 1", opens)
	}
}

func TestKeyboardSignals(t *testing.T) {
	var previews, opens int
	c := newTestTile(t, previewFixture(t), nil, Signals{
		PreviewRequested:     func(media.Handle) { previews++ },
		ArchiveOpenRequested: func(media.Handle) { opens++ },
	})

	c.HandleKey(interaction.KeyEvent{Key: interaction.KeyEnter})
	c.HandleKey(interaction.KeyEvent{Key: interaction.KeySpace})

	if previews != 1 || opens != 1 {
		t.Errorf("signals = %d previews / %d opens, want 1/1", previews, opens)
	}
}

func TestContextMenuSignal(t *testing.T) {
	var menus []media.Handle
	handle := previewFixture(t)
	c := newTestTile(t, handle, nil, Signals{
		ContextMenuRequested: func(h media.Handle) { menus = append(menus, h) },
	})

	c.HandlePress(interaction.PointerEvent{Pos: interaction.Point{X: 10, Y: 10}, Button: interaction.ButtonSecondary})
	if len(menus) != 1 || menus[0].ArchivePath != handle.ArchivePath {
		t.Errorf("context menus = %+v, want one for the bound item", menus)
	}
}

func TestRatingWritesThroughAndSignals(t *testing.T) {
	rec := &fakeRecord{}
	var ratings []int
	c := newTestTile(t, previewFixture(t), rec, Signals{
		RatingChanged: func(_ string, r int) { ratings = append(ratings, r) },
	})

	c.SetRating(4)

	if rec.Rating() != 4 {
		t.Errorf("record rating = %d, want 4", rec.Rating())
	}
	if len(ratings) != 1 || ratings[0] != 4 {
		t.Errorf("rating signals = %v, want [4]", ratings)
	}
	if c.Rating() != 4 {
		t.Errorf("controller rating = %d, want 4", c.Rating())
	}
}

func TestSelectionSignal(t *testing.T) {
	var selections []bool
	c := newTestTile(t, previewFixture(t), nil, Signals{
		TileSelected: func(_ string, sel bool) { selections = append(selections, sel) },
	})

	c.SetSelected(true)
	c.SetSelected(true) // no-op
	c.SetSelected(false)

	want := []bool{true, false}
	if len(selections) != len(want) || selections[0] != want[0] || selections[1] != want[1] {
		t.Errorf("selection signals = %v, want %v", selections, want)
	}
}

func TestRollback(t *testing.T) {
	c := newTestTile(t, previewFixture(t), &fakeRecord{}, Signals{})

	c.SetRating(3)
	c.SetRating(5)
	if !c.RollbackLast() {
		t.Fatal("RollbackLast() = false, want true")
	}
	if c.Rating() != 3 {
		t.Errorf("rating after rollback = %d, want 3", c.Rating())
	}
}

func TestFontSizeFor(t *testing.T) {
	tests := []struct {
		width, want int
	}{
		{60, 7},   // clamped low
		{120, 10}, // 120/12
		{168, 14},
		{400, 14}, // clamped high
	}
	for _, tt := range tests {
		if got := FontSizeFor(tt.width); got != tt.want {
			t.Errorf("FontSizeFor(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestSetSizeImmediateReload(t *testing.T) {
	c := newTestTile(t, previewFixture(t), nil, Signals{})

	c.SetSize(thumb.Size{W: 120, H: 150}, true)

	if got := c.Size(); got != (thumb.Size{W: 120, H: 150}) {
		t.Errorf("Size() = %v, want 120x150", got)
	}
	if got := c.FontSize(); got != 10 {
		t.Errorf("FontSize() = %d, want 10", got)
	}
	if c.LoaderState() != thumb.Ready {
		t.Errorf("loader state after immediate resize = %s, want ready", c.LoaderState())
	}
}

func TestItemUpdatedSignal(t *testing.T) {
	updates := make(chan string, 4)
	c := newTestTile(t, previewFixture(t), nil, Signals{
		ItemUpdated: func(path string) { updates <- path },
	})

	next := previewFixture(t)
	c.SetItem(next, nil)

	select {
	case got := <-updates:
		// The first update fires for the initial bind; drain to the last.
		for {
			select {
			case got = <-updates:
			default:
				if got != next.ArchivePath {
					t.Errorf("item update path = %q, want %q", got, next.ArchivePath)
				}
				return
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no item update signal")
	}
}

func TestCleanupIdempotentAndConcurrent(t *testing.T) {
	p := pool.NewPool(testConfig())
	c, err := New(p, testConfig(), Options{
		Handle: previewFixture(t),
		Size:   thumb.Size{W: 200, H: 240},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Cleanup()
		}()
	}
	wg.Wait()

	if c.LoaderState() != thumb.Disposed {
		t.Errorf("loader state = %s, want disposed", c.LoaderState())
	}
	if got := p.Live(); got != 0 {
		t.Errorf("pool live count after cleanup = %d, want 0", got)
	}
	if c.HandleKey(interaction.KeyEvent{Key: interaction.KeyEnter}) {
		t.Error("disposed tile still handles input")
	}
}

func TestPoolEvictionCleansTile(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLiveTiles = 2
	p := pool.NewPool(cfg)

	tiles := make([]*Controller, 3)
	for i := range tiles {
		c, err := New(p, cfg, Options{
			Handle: previewFixture(t),
			Size:   thumb.Size{W: 200, H: 240},
		})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		t.Cleanup(c.Cleanup)
		tiles[i] = c
	}

	if tiles[0].LoaderState() != thumb.Disposed {
		t.Errorf("oldest tile state = %s, want disposed (evicted)", tiles[0].LoaderState())
	}
	if tiles[2].LoaderState() != thumb.Ready {
		t.Errorf("newest tile state = %s, want ready", tiles[2].LoaderState())
	}
	if got := p.Live(); got != 2 {
		t.Errorf("pool live count = %d, want 2", got)
	}
}
