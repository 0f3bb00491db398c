package interaction

import (
	"image"

	"github.com/disintegration/imaging"

	"asset-tiles/internal/event"
	"asset-tiles/internal/logging"
	"asset-tiles/internal/media"
)

// Button identifies a pointer button.
type Button int

const (
	// ButtonNone means no button.
	ButtonNone Button = iota
	// ButtonPrimary is the main (left) button.
	ButtonPrimary
	// ButtonSecondary is the context-menu (right) button.
	ButtonSecondary
)

// Point is a position in tile-local display units.
type Point struct {
	X, Y int
}

// manhattanTo returns the Manhattan distance between two points.
func (p Point) manhattanTo(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// PointerEvent is one raw pointer input sample.
type PointerEvent struct {
	Pos    Point
	Button Button
}

// Key identifies a keyboard key relevant to tile interaction.
type Key int

const (
	// KeyEnter is Enter/Return.
	KeyEnter Key = iota
	// KeySpace is the space bar.
	KeySpace
	// KeyOpen is the open-file mnemonic ('O').
	KeyOpen
	// KeyPreview is the preview mnemonic ('P').
	KeyPreview
)

// KeyEvent is one raw key press. Modifier reports whether the platform
// command modifier was held.
type KeyEvent struct {
	Key      Key
	Modifier bool
}

// DragState is the drag-recognition state.
type DragState int

const (
	// Idle means no press is being tracked.
	Idle DragState = iota
	// PressDetected means the primary button is down and movement is being
	// measured against the threshold.
	PressDetected
	// DragActive means the threshold was crossed and a drag is in flight.
	DragActive
)

// Target names the tile sub-region a click resolved to.
type Target int

const (
	// TargetNone matched no interactive region.
	TargetNone Target = iota
	// TargetThumbnail is the preview image area.
	TargetThumbnail
	// TargetFilename is the label area below the image.
	TargetFilename
)

// Rect is an axis-aligned region in tile-local units.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Layout describes the tile's interactive regions for click-target
// resolution.
type Layout struct {
	Thumbnail Rect
	Filename  Rect
}

// HitTest resolves a position to the sub-region it falls in.
func (l Layout) HitTest(p Point) Target {
	switch {
	case l.Thumbnail.Contains(p):
		return TargetThumbnail
	case l.Filename.Contains(p):
		return TargetFilename
	default:
		return TargetNone
	}
}

// DragPayload carries the item paths and the drag visual when a drag
// starts. The visual is a scaled-down copy of the current thumbnail, or a
// neutral placeholder when none is loaded.
type DragPayload struct {
	ArchivePath string
	PreviewPath string
	Visual      image.Image
}

// Callbacks are the semantic signals the tracker raises. Nil fields are
// simply not called.
type Callbacks struct {
	ThumbnailClicked func()
	FilenameClicked  func()
	ContextMenu      func(handle media.Handle)
	DragStarted      func(payload DragPayload)
	DragCompleted    func(handle media.Handle)
}

// dragVisualSize is the edge length of the scaled-down drag image.
const dragVisualSize = 64

// Tracker classifies raw pointer/keyboard input into semantic gestures and
// manages drag initiation. It runs on the UI loop only and is not
// goroutine-safe.
type Tracker struct {
	threshold int
	handle    media.Handle
	layout    Layout
	callbacks Callbacks
	bus       *event.Bus

	// thumbnail supplies the current bitmap for the drag visual; may be nil
	// or return nil.
	thumbnail func() image.Image

	state    DragState
	pressPos Point
}

// NewTracker creates a tracker with the given drag threshold (display
// units, Manhattan distance).
func NewTracker(bus *event.Bus, threshold int, callbacks Callbacks) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		threshold: threshold,
		callbacks: callbacks,
		bus:       bus,
		state:     Idle,
	}
}

// State returns the current drag-recognition state.
func (t *Tracker) State() DragState { return t.state }

// SetHandle binds the tracker to an item handle and resets the drag
// context.
func (t *Tracker) SetHandle(handle media.Handle) {
	t.handle = handle
	t.state = Idle
}

// SetLayout updates the interactive regions used for click resolution.
func (t *Tracker) SetLayout(layout Layout) {
	t.layout = layout
}

// SetThumbnailSource registers the provider of the current bitmap used as
// the drag visual.
func (t *Tracker) SetThumbnailSource(fn func() image.Image) {
	t.thumbnail = fn
}

// HandlePress processes a button press. The secondary button raises a
// context-menu request immediately, bypassing drag tracking.
func (t *Tracker) HandlePress(ev PointerEvent) bool {
	switch ev.Button {
	case ButtonSecondary:
		t.publish("context_menu")
		if t.callbacks.ContextMenu != nil {
			t.callbacks.ContextMenu(t.handle)
		}
		return true
	case ButtonPrimary:
		t.state = PressDetected
		t.pressPos = ev.Pos
		return true
	default:
		return false
	}
}

// HandleMove processes pointer motion. Once the Manhattan distance from the
// press position reaches the threshold while the button is held, the drag
// starts.
func (t *Tracker) HandleMove(ev PointerEvent) bool {
	if t.state != PressDetected {
		return false
	}
	if t.pressPos.manhattanTo(ev.Pos) < t.threshold {
		return false
	}

	t.state = DragActive
	t.publish("drag")
	if t.callbacks.DragStarted != nil {
		t.callbacks.DragStarted(DragPayload{
			ArchivePath: t.handle.ArchivePath,
			PreviewPath: t.handle.PreviewPath,
			Visual:      t.dragVisual(),
		})
	}
	return true
}

// HandleRelease processes a button release. A release while still in
// PressDetected and within the threshold of the press position is a click;
// a release in DragActive completes the drag. The state always returns to
// Idle.
func (t *Tracker) HandleRelease(ev PointerEvent) bool {
	defer func() { t.state = Idle }()

	switch t.state {
	case PressDetected:
		if t.pressPos.manhattanTo(ev.Pos) < t.threshold {
			return t.dispatchClick(ev.Pos)
		}
		return false
	case DragActive:
		if t.callbacks.DragCompleted != nil {
			t.callbacks.DragCompleted(t.handle)
		}
		return true
	default:
		return false
	}
}

// dispatchClick resolves the click target and raises the matching signal.
// Unrecognized targets raise nothing.
func (t *Tracker) dispatchClick(pos Point) bool {
	switch t.layout.HitTest(pos) {
	case TargetThumbnail:
		t.publish("click_thumbnail")
		if t.callbacks.ThumbnailClicked != nil {
			t.callbacks.ThumbnailClicked()
		}
		return true
	case TargetFilename:
		t.publish("click_filename")
		if t.callbacks.FilenameClicked != nil {
			t.callbacks.FilenameClicked()
		}
		return true
	default:
		logging.Debug("click at (%d,%d) hit no target", pos.X, pos.Y)
		return false
	}
}

// HandleKey processes a key press. The open combo and Space map to the
// filename action; the preview combo and Enter map to the thumbnail action.
func (t *Tracker) HandleKey(ev KeyEvent) bool {
	switch {
	case ev.Key == KeyOpen && ev.Modifier, ev.Key == KeySpace:
		t.publish("key")
		if t.callbacks.FilenameClicked != nil {
			t.callbacks.FilenameClicked()
		}
		return true
	case ev.Key == KeyPreview && ev.Modifier, ev.Key == KeyEnter:
		t.publish("key")
		if t.callbacks.ThumbnailClicked != nil {
			t.callbacks.ThumbnailClicked()
		}
		return true
	default:
		return false
	}
}

// Cleanup resets the drag context.
func (t *Tracker) Cleanup() {
	t.state = Idle
}

// dragVisual scales the current thumbnail down for use as the drag image,
// falling back to a neutral placeholder.
func (t *Tracker) dragVisual() image.Image {
	if t.thumbnail != nil {
		if img := t.thumbnail(); img != nil {
			return imaging.Fit(img, dragVisualSize, dragVisualSize, imaging.Box)
		}
	}
	return neutralPlaceholder()
}

// neutralPlaceholder returns a uniform gray square.
func neutralPlaceholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, dragVisualSize, dragVisualSize))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0x80
		img.Pix[i+1] = 0x80
		img.Pix[i+2] = 0x80
		img.Pix[i+3] = 0xFF
	}
	return img
}

func (t *Tracker) publish(gesture string) {
	if t.bus != nil {
		t.bus.Publish(event.Interaction, gesture, t.handle.ArchivePath)
	}
}
