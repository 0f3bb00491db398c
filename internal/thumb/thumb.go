package thumb

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"asset-tiles/internal/config"
	"asset-tiles/internal/event"
	"asset-tiles/internal/logging"
	"asset-tiles/internal/media"
	"asset-tiles/internal/metrics"
	"asset-tiles/internal/workers"
)

// decodeSlots bounds concurrent async decodes across all loaders so a
// scroll burst cannot saturate the CPU.
var decodeSlots = make(chan struct{}, workers.ForDecode(16))

// State is the loader lifecycle state.
type State string

const (
	// Initializing means no load has been requested yet.
	Initializing State = "initializing"
	// Loading means a decode is in flight.
	Loading State = "loading_thumbnail"
	// Ready means the current thumbnail is displayable.
	Ready State = "ready"
	// Failed means the last load ended in an error.
	Failed State = "error"
	// Disposed is terminal; every operation after it is a no-op.
	Disposed State = "disposed"
)

// Size is a requested thumbnail size in pixels.
type Size struct {
	W, H int
}

func (s Size) valid() bool { return s.W > 0 && s.H > 0 }

// Result describes one finished load attempt.
type Result struct {
	Path      string
	Size      Size
	Image     image.Image
	FromCache bool
	Err       error
}

// Cache is the shared thumbnail cache the loader consults before decoding.
// The resource pool implements it.
type Cache interface {
	Get(path string, w, h int) (image.Image, bool)
	Put(path string, w, h int, img image.Image)
}

// ErrTimeout is reported when a decode exceeds the configured load timeout.
var ErrTimeout = errors.New("thumbnail load timed out")

// Loader drives one tile's thumbnail through its lifecycle: existence check,
// cache lookup, sync or async decode, debounced reloads on resize, and a
// stale guard that drops results from superseded requests.
type Loader struct {
	mu    sync.Mutex
	cfg   config.Snapshot
	bus   *event.Bus
	cache Cache

	// decode produces the scaled bitmap; swappable in tests.
	decode func(path string, w, h int) (image.Image, error)

	// dispatch, when set, marshals async completions onto the caller's
	// loop. Nil runs them on the worker goroutine.
	dispatch func(func())

	onLoaded func(Result)
	onError  func(Result)

	state State
	path  string
	size  Size

	// reqID rises on every load request; completions carrying an older id
	// are stale and discarded.
	reqID uint64

	debounce    *time.Timer
	pendingSize Size

	current image.Image
	memCost int64
}

// Options carries the loader's collaborators and callbacks.
type Options struct {
	Bus      *event.Bus
	Cache    Cache
	Decode   func(path string, w, h int) (image.Image, error)
	Dispatch func(func())
	OnLoaded func(Result)
	OnError  func(Result)
}

// NewLoader creates a loader in the Initializing state.
func NewLoader(cfg config.Snapshot, opts Options) *Loader {
	l := &Loader{
		cfg:      cfg,
		bus:      opts.Bus,
		cache:    opts.Cache,
		decode:   opts.Decode,
		dispatch: opts.Dispatch,
		onLoaded: opts.OnLoaded,
		onError:  opts.OnError,
		state:    Initializing,
	}
	if l.decode == nil {
		l.decode = func(path string, w, h int) (image.Image, error) {
			return media.DecodeScaled(path, w, h, cfg.UseVips)
		}
	}
	return l
}

// State returns the loader lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Current returns the most recent successfully loaded bitmap, or nil.
func (l *Loader) Current() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// MemoryCost estimates the resident bytes of the current bitmap
// (width * height * 4).
func (l *Loader) MemoryCost() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.memCost
}

// Load requests the thumbnail for path at size. The existence check is
// synchronous and fails fast: a missing preview returns false and moves the
// loader to the error state without scheduling any work. A cache hit becomes
// Ready immediately; a miss decodes inline or on a worker goroutine
// depending on configuration.
func (l *Loader) Load(path string, size Size) bool {
	if !size.valid() {
		size = Size{W: 256, H: 256}
	}

	l.mu.Lock()
	if l.state == Disposed {
		l.mu.Unlock()
		return false
	}
	l.reqID++
	id := l.reqID
	l.path = path
	l.size = size
	l.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		l.complete(id, Result{Path: path, Size: size, Err: fmt.Errorf("preview missing: %w", err)})
		return false
	}

	if l.cache != nil {
		if img, ok := l.cache.Get(path, size.W, size.H); ok {
			metrics.ThumbnailLoadsTotal.WithLabelValues("cache_hit").Inc()
			l.complete(id, Result{Path: path, Size: size, Image: img, FromCache: true})
			return true
		}
	}

	l.setState(Loading)
	if l.cfg.AsyncLoading {
		go l.loadAsync(id, path, size)
	} else {
		start := time.Now()
		img, err := l.decode(path, size.W, size.H)
		metrics.ThumbnailLoadDuration.Observe(time.Since(start).Seconds())
		l.complete(id, Result{Path: path, Size: size, Image: img, Err: err})
		return err == nil
	}
	return true
}

// Reload re-requests the current path at the current size.
func (l *Loader) Reload() bool {
	l.mu.Lock()
	path, size := l.path, l.size
	l.mu.Unlock()
	if path == "" {
		return false
	}
	return l.Load(path, size)
}

// SetSize records a new target size. Immediate applies it right away;
// otherwise the reload is debounced so that a burst of resize events decodes
// only once, at the final size.
func (l *Loader) SetSize(size Size, immediate bool) {
	if !size.valid() {
		return
	}

	l.mu.Lock()
	if l.state == Disposed {
		l.mu.Unlock()
		return
	}
	if size == l.size && l.state == Ready {
		l.mu.Unlock()
		return
	}
	l.pendingSize = size

	if immediate || l.cfg.DebounceInterval <= 0 {
		if l.debounce != nil {
			l.debounce.Stop()
			l.debounce = nil
		}
		l.mu.Unlock()
		l.applyPendingSize()
		return
	}

	if l.debounce == nil {
		l.debounce = time.AfterFunc(l.cfg.DebounceInterval, l.applyPendingSize)
	} else {
		l.debounce.Reset(l.cfg.DebounceInterval)
	}
	l.mu.Unlock()
}

// applyPendingSize fires after the debounce window with the last size seen.
func (l *Loader) applyPendingSize() {
	l.mu.Lock()
	if l.state == Disposed || !l.pendingSize.valid() {
		l.mu.Unlock()
		return
	}
	size := l.pendingSize
	l.pendingSize = Size{}
	path := l.path
	l.size = size
	l.mu.Unlock()

	if path != "" {
		l.Load(path, size)
	}
}

// Cleanup moves the loader to the terminal Disposed state, cancels any
// pending debounce, and guarantees that in-flight async results are
// discarded. Safe to call multiple times.
func (l *Loader) Cleanup() {
	l.mu.Lock()
	if l.state == Disposed {
		l.mu.Unlock()
		return
	}
	if l.debounce != nil {
		l.debounce.Stop()
		l.debounce = nil
	}
	l.reqID++ // orphan any in-flight request
	l.current = nil
	l.memCost = 0
	from, changed := l.transitionLocked(Disposed)
	l.mu.Unlock()
	l.announceTransition(from, Disposed, changed)
}

// loadAsync decodes on a worker goroutine, bounded by the configured load
// timeout, and routes the completion through the dispatch hook when one is
// set.
func (l *Loader) loadAsync(id uint64, path string, size Size) {
	type decoded struct {
		img image.Image
		err error
	}
	ch := make(chan decoded, 1)
	start := time.Now()

	go func() {
		decodeSlots <- struct{}{}
		defer func() { <-decodeSlots }()
		img, err := l.decode(path, size.W, size.H)
		ch <- decoded{img, err}
	}()

	var deadline <-chan time.Time
	if l.cfg.LoadTimeout > 0 {
		deadline = time.After(l.cfg.LoadTimeout)
	}

	var res Result
	select {
	case d := <-ch:
		metrics.ThumbnailLoadDuration.Observe(time.Since(start).Seconds())
		res = Result{Path: path, Size: size, Image: d.img, Err: d.err}
	case <-deadline:
		res = Result{Path: path, Size: size, Err: fmt.Errorf("%w after %s", ErrTimeout, l.cfg.LoadTimeout)}
	}

	if l.dispatch != nil {
		l.dispatch(func() { l.complete(id, res) })
	} else {
		l.complete(id, res)
	}
}

// complete applies a finished load attempt, discarding it when the loader
// was disposed or the request was superseded.
func (l *Loader) complete(id uint64, res Result) {
	l.mu.Lock()
	if l.state == Disposed || id != l.reqID {
		l.mu.Unlock()
		metrics.ThumbnailLoadsTotal.WithLabelValues("stale").Inc()
		logging.Debug("discarding stale thumbnail result for %s", res.Path)
		return
	}

	if res.Err != nil {
		l.current = nil
		l.memCost = 0
		from, changed := l.transitionLocked(Failed)
		l.mu.Unlock()
		l.announceTransition(from, Failed, changed)

		logging.Warn("thumbnail load failed for %s: %v", res.Path, res.Err)
		if l.onError != nil {
			l.onError(res)
		}
		if l.bus != nil {
			l.bus.Publish(event.ThumbnailError, res.Path, res.Err)
		}
		return
	}

	b := res.Image.Bounds()
	l.current = res.Image
	l.memCost = int64(b.Dx()) * int64(b.Dy()) * 4
	from, changed := l.transitionLocked(Ready)
	cache := l.cache
	l.mu.Unlock()
	l.announceTransition(from, Ready, changed)

	if cache != nil && !res.FromCache {
		cache.Put(res.Path, res.Size.W, res.Size.H, res.Image)
	}
	if l.onLoaded != nil {
		l.onLoaded(res)
	}
	if l.bus != nil {
		l.bus.Publish(event.ThumbnailLoaded, res.Path, res.Image)
	}
}

func (l *Loader) setState(next State) {
	l.mu.Lock()
	if l.state == Disposed {
		l.mu.Unlock()
		return
	}
	from, changed := l.transitionLocked(next)
	l.mu.Unlock()
	l.announceTransition(from, next, changed)
}

func (l *Loader) transitionLocked(next State) (State, bool) {
	from := l.state
	if from == next {
		return from, false
	}
	l.state = next
	return from, true
}

// announceTransition publishes a state change outside the lock so bus
// handlers can re-enter the loader.
func (l *Loader) announceTransition(from, to State, changed bool) {
	if changed && l.bus != nil {
		l.bus.Publish(event.StateChanged, string(from), string(to))
	}
}
