package tile

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"asset-tiles/internal/config"
	"asset-tiles/internal/event"
	"asset-tiles/internal/interaction"
	"asset-tiles/internal/media"
	"asset-tiles/internal/metastate"
	"asset-tiles/internal/metrics"
	"asset-tiles/internal/pool"
	"asset-tiles/internal/thumb"
)

const (
	// MinFontSize and MaxFontSize bound the filename label font.
	MinFontSize = 7
	MaxFontSize = 14
)

// FontSizeFor derives the filename font size from the tile width: one
// point per twelve pixels, clamped.
func FontSizeFor(width int) int {
	size := width / 12
	if size < MinFontSize {
		return MinFontSize
	}
	if size > MaxFontSize {
		return MaxFontSize
	}
	return size
}

// filenameBandHeight is the height reserved for the filename label at a
// given font size.
func filenameBandHeight(fontSize int) int {
	return fontSize*2 + 6
}

// Signals are the outward-facing callbacks a tile raises. Nil fields are
// not called.
type Signals struct {
	ArchiveOpenRequested func(handle media.Handle)
	PreviewRequested     func(handle media.Handle)
	ContextMenuRequested func(handle media.Handle)
	TileSelected         func(path string, selected bool)
	RatingChanged        func(path string, rating int)
	ColorTagChanged      func(path string, tag string)
	ItemUpdated          func(path string)
	DragStarted          func(payload interaction.DragPayload)
	DragCompleted        func(handle media.Handle)
}

// Options configures a new controller.
type Options struct {
	Handle media.Handle
	Size   thumb.Size
	// Record is the persisted annotation record for the item; nil leaves
	// the tile with in-memory metadata only.
	Record metastate.RecordAccessor
	// Dispatch marshals async thumbnail completions onto the caller's
	// loop; nil delivers them on the worker goroutine.
	Dispatch func(func())
	Signals  Signals
}

// Controller composes one tile's collaborators: thumbnail loader, metadata
// tracker, and interaction tracker, wired over a private event bus, with a
// registration in the shared resource pool.
type Controller struct {
	mu      sync.Mutex
	cfg     config.Snapshot
	pool    *pool.Pool
	bus     *event.Bus
	signals Signals

	handle media.Handle
	size   thumb.Size

	loader *thumb.Loader
	meta   *metastate.Tracker
	inter  *interaction.Tracker

	reg      *pool.Registration
	subs     []*event.Subscription
	observer *metrics.PerformanceObserver

	disposed atomic.Bool
}

// New builds a tile controller. The pool and a positive size are required.
func New(p *pool.Pool, cfg config.Snapshot, opts Options) (*Controller, error) {
	if p == nil {
		return nil, fmt.Errorf("tile: resource pool is required")
	}
	if opts.Size.W <= 0 || opts.Size.H <= 0 {
		return nil, fmt.Errorf("tile: invalid size %dx%d", opts.Size.W, opts.Size.H)
	}

	c := &Controller{
		cfg:     cfg,
		pool:    p,
		bus:     event.NewBus(),
		signals: opts.Signals,
		handle:  opts.Handle,
		size:    opts.Size,
	}
	c.observer = metrics.NewPerformanceObserver(c.bus)

	c.loader = thumb.NewLoader(cfg, thumb.Options{
		Bus:      c.bus,
		Cache:    p,
		Dispatch: opts.Dispatch,
	})

	c.meta = metastate.NewTracker(c.bus, cfg)
	c.meta.AddListener(metastate.KindRating, func(_ metastate.ChangeKind, v any) {
		if c.signals.RatingChanged != nil {
			c.signals.RatingChanged(c.Handle().ArchivePath, v.(int))
		}
	})
	c.meta.AddListener(metastate.KindColor, func(_ metastate.ChangeKind, v any) {
		if c.signals.ColorTagChanged != nil {
			c.signals.ColorTagChanged(c.Handle().ArchivePath, v.(string))
		}
	})
	c.meta.AddListener(metastate.KindSelection, func(_ metastate.ChangeKind, v any) {
		if c.signals.TileSelected != nil {
			c.signals.TileSelected(c.Handle().ArchivePath, v.(bool))
		}
	})

	c.inter = interaction.NewTracker(c.bus, cfg.DragThreshold, interaction.Callbacks{
		ThumbnailClicked: func() {
			if c.signals.PreviewRequested != nil {
				c.signals.PreviewRequested(c.Handle())
			}
		},
		FilenameClicked: func() {
			if c.signals.ArchiveOpenRequested != nil {
				c.signals.ArchiveOpenRequested(c.Handle())
			}
		},
		ContextMenu: func(h media.Handle) {
			if c.signals.ContextMenuRequested != nil {
				c.signals.ContextMenuRequested(h)
			}
		},
		DragStarted: func(payload interaction.DragPayload) {
			if c.signals.DragStarted != nil {
				c.signals.DragStarted(payload)
			}
		},
		DragCompleted: func(h media.Handle) {
			if c.signals.DragCompleted != nil {
				c.signals.DragCompleted(h)
			}
		},
	})
	c.inter.SetThumbnailSource(c.loader.Current)

	// Subscriptions are anchored on the controller; the bus itself holds
	// them weakly.
	c.subs = append(c.subs, c.bus.Subscribe(event.DataUpdated, func(payload ...any) {
		if c.signals.ItemUpdated != nil && len(payload) >= 1 {
			if path, ok := payload[0].(string); ok {
				c.signals.ItemUpdated(path)
			}
		}
	}))

	c.reg = p.Register(c)

	if !opts.Handle.IsZero() {
		c.bindItem(opts.Handle, opts.Record)
	}
	c.applyLayout(opts.Size)
	return c, nil
}

// Handle returns the currently bound item handle.
func (c *Controller) Handle() media.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Size returns the current tile size.
func (c *Controller) Size() thumb.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// FontSize returns the filename font size for the current width.
func (c *Controller) FontSize() int {
	return FontSizeFor(c.Size().W)
}

// SetItem rebinds the tile to a different item and starts loading its
// thumbnail.
func (c *Controller) SetItem(handle media.Handle, record metastate.RecordAccessor) {
	if c.disposed.Load() {
		return
	}
	c.bindItem(handle, record)
}

func (c *Controller) bindItem(handle media.Handle, record metastate.RecordAccessor) {
	c.mu.Lock()
	c.handle = handle
	size := c.size
	c.mu.Unlock()

	c.meta.SetItem(handle.ArchivePath, record)
	c.inter.SetHandle(handle)
	if handle.HasPreview() {
		c.loader.Load(handle.PreviewPath, size)
	}
}

// SetSize resizes the tile. The thumbnail reload is debounced unless
// immediate is set; the interaction layout and font size update right
// away.
func (c *Controller) SetSize(size thumb.Size, immediate bool) {
	if c.disposed.Load() || size.W <= 0 || size.H <= 0 {
		return
	}
	c.mu.Lock()
	c.size = size
	c.mu.Unlock()

	c.applyLayout(size)
	c.loader.SetSize(size, immediate)
	c.bus.Publish(event.SizeChanged, size.W, size.H)
}

// applyLayout recomputes the interactive regions: thumbnail on top, the
// filename band below it.
func (c *Controller) applyLayout(size thumb.Size) {
	band := filenameBandHeight(FontSizeFor(size.W))
	if band >= size.H {
		band = size.H / 4
	}
	c.inter.SetLayout(interaction.Layout{
		Thumbnail: interaction.Rect{X: 0, Y: 0, W: size.W, H: size.H - band},
		Filename:  interaction.Rect{X: 0, Y: size.H - band, W: size.W, H: band},
	})
}

// Thumbnail returns the current bitmap, or nil while loading.
func (c *Controller) Thumbnail() image.Image { return c.loader.Current() }

// LoaderState exposes the thumbnail lifecycle state.
func (c *Controller) LoaderState() thumb.State { return c.loader.State() }

// SetSelected updates the selection flag.
func (c *Controller) SetSelected(selected bool) {
	if c.disposed.Load() {
		return
	}
	c.meta.SetSelected(selected)
}

// Selected reports the selection flag.
func (c *Controller) Selected() bool { return c.meta.Selected() }

// SetRating commits a rating change through the metadata tracker.
func (c *Controller) SetRating(rating int) {
	if c.disposed.Load() {
		return
	}
	c.meta.SetRating(rating)
}

// Rating returns the current rating.
func (c *Controller) Rating() int { return c.meta.Rating() }

// SetColorTag commits a color tag change through the metadata tracker.
func (c *Controller) SetColorTag(tag string) {
	if c.disposed.Load() {
		return
	}
	c.meta.SetColorTag(tag)
}

// ColorTag returns the current color tag.
func (c *Controller) ColorTag() string { return c.meta.ColorTag() }

// RollbackLast reverts the most recent metadata change.
func (c *Controller) RollbackLast(kinds ...metastate.ChangeKind) bool {
	if c.disposed.Load() {
		return false
	}
	return c.meta.RollbackLast(kinds...)
}

// Metadata returns an atomic snapshot of the metadata triple.
func (c *Controller) Metadata() metastate.Snapshot { return c.meta.GetSnapshot() }

// HandlePress forwards a pointer press to the interaction tracker.
func (c *Controller) HandlePress(ev interaction.PointerEvent) bool {
	if c.disposed.Load() {
		return false
	}
	return c.inter.HandlePress(ev)
}

// HandleMove forwards pointer motion to the interaction tracker.
func (c *Controller) HandleMove(ev interaction.PointerEvent) bool {
	if c.disposed.Load() {
		return false
	}
	return c.inter.HandleMove(ev)
}

// HandleRelease forwards a pointer release to the interaction tracker.
func (c *Controller) HandleRelease(ev interaction.PointerEvent) bool {
	if c.disposed.Load() {
		return false
	}
	return c.inter.HandleRelease(ev)
}

// HandleKey forwards a key press to the interaction tracker.
func (c *Controller) HandleKey(ev interaction.KeyEvent) bool {
	if c.disposed.Load() {
		return false
	}
	return c.inter.HandleKey(ev)
}

// Bus exposes the tile's private event bus for observers such as the
// performance monitor.
func (c *Controller) Bus() *event.Bus { return c.bus }

// Cleanup tears the tile down: loader, metadata tracker, interaction
// tracker, pool registration, and bus subscriptions. Concurrency-safe and
// idempotent; the first caller wins.
func (c *Controller) Cleanup() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.loader.Cleanup()
	c.meta.Cleanup()
	c.inter.Cleanup()

	for _, sub := range c.subs {
		c.bus.Unsubscribe(sub)
	}
	c.subs = nil
	c.observer.Close()
	c.bus.Clear()
	c.pool.Unregister(c.reg)
}
