package interaction

import (
	"image"
	"testing"

	"asset-tiles/internal/event"
	"asset-tiles/internal/media"
)

// tileLayout is a representative 200x240 tile: image on top, label below.
func tileLayout() Layout {
	return Layout{
		Thumbnail: Rect{X: 0, Y: 0, W: 200, H: 200},
		Filename:  Rect{X: 0, Y: 200, W: 200, H: 40},
	}
}

type capture struct {
	thumbClicks int
	fileClicks  int
	menus       int
	dragStarts  []DragPayload
	dragDone    int
}

func (c *capture) callbacks() Callbacks {
	return Callbacks{
		ThumbnailClicked: func() { c.thumbClicks++ },
		FilenameClicked:  func() { c.fileClicks++ },
		ContextMenu:      func(media.Handle) { c.menus++ },
		DragStarted:      func(p DragPayload) { c.dragStarts = append(c.dragStarts, p) },
		DragCompleted:    func(media.Handle) { c.dragDone++ },
	}
}

func newTestTracker(c *capture) *Tracker {
	tr := NewTracker(event.NewBus(), 10, c.callbacks())
	tr.SetHandle(media.Handle{ArchivePath: "/lib/a.zip", PreviewPath: "/lib/a.png"})
	tr.SetLayout(tileLayout())
	return tr
}

func TestClickOnThumbnail(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 100, Y: 100}, Button: ButtonPrimary})
	tr.HandleRelease(PointerEvent{Pos: Point{X: 103, Y: 102}, Button: ButtonPrimary})

	if c.thumbClicks != 1 {
		t.Errorf("thumbnail clicks = %d, want 1", c.thumbClicks)
	}
	if len(c.dragStarts) != 0 {
		t.Error("sub-threshold press/release started a drag")
	}
	if tr.State() != Idle {
		t.Errorf("state after release = %v, want idle", tr.State())
	}
}

func TestClickOnFilename(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 50, Y: 215}, Button: ButtonPrimary})
	tr.HandleRelease(PointerEvent{Pos: Point{X: 50, Y: 215}, Button: ButtonPrimary})

	if c.fileClicks != 1 {
		t.Errorf("filename clicks = %d, want 1", c.fileClicks)
	}
	if c.thumbClicks != 0 {
		t.Errorf("thumbnail clicks = %d, want 0", c.thumbClicks)
	}
}

func TestClickOutsideTargetsIsIgnored(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 500, Y: 500}, Button: ButtonPrimary})
	if tr.HandleRelease(PointerEvent{Pos: Point{X: 500, Y: 500}, Button: ButtonPrimary}) {
		t.Error("release outside all targets reported handled")
	}
	if c.thumbClicks+c.fileClicks != 0 {
		t.Error("click outside targets raised a signal")
	}
}

func TestDragThreshold(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 100, Y: 100}, Button: ButtonPrimary})

	// Manhattan distance 9 stays below the threshold of 10.
	tr.HandleMove(PointerEvent{Pos: Point{X: 105, Y: 104}})
	if tr.State() != PressDetected {
		t.Fatalf("state after sub-threshold move = %v, want press-detected", tr.State())
	}

	// Distance 10 crosses it.
	tr.HandleMove(PointerEvent{Pos: Point{X: 106, Y: 104}})
	if tr.State() != DragActive {
		t.Fatalf("state after threshold move = %v, want drag-active", tr.State())
	}
	if len(c.dragStarts) != 1 {
		t.Fatalf("drag starts = %d, want 1", len(c.dragStarts))
	}

	p := c.dragStarts[0]
	if p.ArchivePath != "/lib/a.zip" || p.PreviewPath != "/lib/a.png" {
		t.Errorf("drag payload paths = %q/%q, want both item paths", p.ArchivePath, p.PreviewPath)
	}
	if p.Visual == nil {
		t.Error("drag payload has no visual")
	}

	tr.HandleRelease(PointerEvent{Pos: Point{X: 150, Y: 104}})
	if c.dragDone != 1 {
		t.Errorf("drag completions = %d, want 1", c.dragDone)
	}
	if c.thumbClicks != 0 {
		t.Error("drag release also dispatched a click")
	}
}

func TestDragVisualScaledFromThumbnail(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)
	tr.SetThumbnailSource(func() image.Image {
		return image.NewRGBA(image.Rect(0, 0, 400, 200))
	})

	tr.HandlePress(PointerEvent{Pos: Point{X: 0, Y: 0}, Button: ButtonPrimary})
	tr.HandleMove(PointerEvent{Pos: Point{X: 50, Y: 0}})

	if len(c.dragStarts) != 1 {
		t.Fatal("drag did not start")
	}
	b := c.dragStarts[0].Visual.Bounds()
	if b.Dx() > dragVisualSize || b.Dy() > dragVisualSize {
		t.Errorf("drag visual %dx%d exceeds %d", b.Dx(), b.Dy(), dragVisualSize)
	}
}

func TestSecondaryButtonOpensContextMenu(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 10, Y: 10}, Button: ButtonSecondary})
	if c.menus != 1 {
		t.Errorf("context menu requests = %d, want 1", c.menus)
	}
	if tr.State() != Idle {
		t.Error("secondary press entered drag tracking")
	}
}

func TestMoveWithoutPressIgnored(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	if tr.HandleMove(PointerEvent{Pos: Point{X: 300, Y: 300}}) {
		t.Error("move without press reported handled")
	}
	if len(c.dragStarts) != 0 {
		t.Error("move without press started a drag")
	}
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name       string
		ev         KeyEvent
		wantThumb  int
		wantFile   int
		wantHandle bool
	}{
		{"enter previews", KeyEvent{Key: KeyEnter}, 1, 0, true},
		{"space opens", KeyEvent{Key: KeySpace}, 0, 1, true},
		{"mod+o opens", KeyEvent{Key: KeyOpen, Modifier: true}, 0, 1, true},
		{"mod+p previews", KeyEvent{Key: KeyPreview, Modifier: true}, 1, 0, true},
		{"bare o ignored", KeyEvent{Key: KeyOpen}, 0, 0, false},
		{"bare p ignored", KeyEvent{Key: KeyPreview}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c capture
			tr := newTestTracker(&c)

			if got := tr.HandleKey(tt.ev); got != tt.wantHandle {
				t.Errorf("HandleKey() = %v, want %v", got, tt.wantHandle)
			}
			if c.thumbClicks != tt.wantThumb || c.fileClicks != tt.wantFile {
				t.Errorf("clicks = %d/%d, want %d/%d",
					c.thumbClicks, c.fileClicks, tt.wantThumb, tt.wantFile)
			}
		})
	}
}

func TestSetHandleResetsDrag(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 10, Y: 10}, Button: ButtonPrimary})
	tr.SetHandle(media.Handle{ArchivePath: "/lib/b.zip"})

	if tr.State() != Idle {
		t.Errorf("state after SetHandle = %v, want idle", tr.State())
	}
}

func TestCleanupResetsState(t *testing.T) {
	var c capture
	tr := newTestTracker(&c)

	tr.HandlePress(PointerEvent{Pos: Point{X: 10, Y: 10}, Button: ButtonPrimary})
	tr.HandleMove(PointerEvent{Pos: Point{X: 100, Y: 100}})
	tr.Cleanup()

	if tr.State() != Idle {
		t.Errorf("state after cleanup = %v, want idle", tr.State())
	}
}
