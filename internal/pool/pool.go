package pool

import (
	"image"
	"sync"
	"weak"

	"asset-tiles/internal/config"
	"asset-tiles/internal/logging"
	"asset-tiles/internal/media"
	"asset-tiles/internal/memory"
	"asset-tiles/internal/metrics"
)

// Disposable is anything the pool can evict. Tiles implement it.
type Disposable interface {
	Cleanup()
}

// Registration is the strong anchor a tile holds while registered. The pool
// itself keeps only a weak reference, so a tile that drops its registration
// lapses out of the registry without explicit unregistration.
type Registration struct {
	id   uint64
	tile Disposable
}

// cacheKey identifies one cached thumbnail.
type cacheKey struct {
	path string
	w, h int
}

// Pool bounds the set of live tiles and shares decoded thumbnails between
// them. The registry is FIFO: when the cap is reached, the oldest
// still-live tile is cleaned up to make room.
type Pool struct {
	mu  sync.Mutex
	cfg config.Snapshot

	nextID uint64
	regs   map[uint64]weak.Pointer[Registration]
	order  []uint64

	cacheLimit int
	cache      map[cacheKey]any
	cacheOrder []cacheKey
	cacheBytes int64
}

// NewPool creates a pool sized from the configuration. A zero cache-entry
// limit derives one from the process memory budget at the default
// thumbnail size.
func NewPool(cfg config.Snapshot) *Pool {
	limit := cfg.CacheEntries
	if limit <= 0 {
		budget := memory.CacheBudget(memory.DetectLimit())
		limit = memory.EntriesForBudget(budget, 256, 256)
		logging.Info("thumbnail cache sized to %d entries from a %s budget",
			limit, memory.FormatBytes(budget))
	}
	return &Pool{
		cfg:        cfg,
		regs:       make(map[uint64]weak.Pointer[Registration]),
		cache:      make(map[cacheKey]any),
		cacheLimit: limit,
	}
}

// Register adds a tile to the registry and returns its registration, which
// the tile must hold for as long as it wants to stay registered. When the
// registry is full, the oldest live tile is evicted and cleaned up first.
func (p *Pool) Register(tile Disposable) *Registration {
	if tile == nil {
		return nil
	}

	var evict Disposable
	p.mu.Lock()
	p.pruneLocked()
	if p.cfg.MaxLiveTiles > 0 && len(p.order) >= p.cfg.MaxLiveTiles {
		evict = p.evictOldestLocked()
	}

	p.nextID++
	reg := &Registration{id: p.nextID, tile: tile}
	p.regs[reg.id] = weak.Make(reg)
	p.order = append(p.order, reg.id)
	live := len(p.order)
	p.mu.Unlock()

	metrics.TileRegistrationsTotal.Inc()
	metrics.TilesLive.Set(float64(live))
	if evict != nil {
		metrics.TileEvictionsTotal.Inc()
		evict.Cleanup()
	}
	return reg
}

// Unregister removes a registration. Nil or already-removed registrations
// are safe to pass.
func (p *Pool) Unregister(reg *Registration) {
	if reg == nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.regs[reg.id]; ok {
		delete(p.regs, reg.id)
		p.removeOrderLocked(reg.id)
	}
	live := len(p.order)
	p.mu.Unlock()
	metrics.TilesLive.Set(float64(live))
}

// Live returns the number of currently registered live tiles, pruning
// registrations whose holders have been collected.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked()
	return len(p.order)
}

// evictOldestLocked removes the front of the FIFO order and returns its
// tile for cleanup outside the lock. Dead entries are skipped.
func (p *Pool) evictOldestLocked() Disposable {
	for len(p.order) > 0 {
		id := p.order[0]
		p.order = p.order[1:]
		ref, ok := p.regs[id]
		if !ok {
			continue
		}
		delete(p.regs, id)
		if reg := ref.Value(); reg != nil {
			return reg.tile
		}
	}
	return nil
}

// pruneLocked drops registrations whose Registration was collected.
func (p *Pool) pruneLocked() {
	kept := p.order[:0]
	for _, id := range p.order {
		ref, ok := p.regs[id]
		if !ok {
			continue
		}
		if ref.Value() == nil {
			delete(p.regs, id)
			continue
		}
		kept = append(kept, id)
	}
	p.order = kept
}

func (p *Pool) removeOrderLocked(id uint64) {
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Get returns the cached thumbnail for (path, w, h). Entries that do not
// hold an image are treated as misses and dropped.
func (p *Pool) Get(path string, w, h int) (image.Image, bool) {
	key := cacheKey{path, w, h}

	p.mu.Lock()
	raw, ok := p.cache[key]
	if !ok {
		p.mu.Unlock()
		metrics.ThumbnailCacheMissesTotal.Inc()
		return nil, false
	}
	img, ok := raw.(image.Image)
	if !ok {
		p.dropCacheKeyLocked(key)
		p.mu.Unlock()
		logging.Warn("cache entry for %s (%dx%d) holds %T, not an image", path, w, h, raw)
		metrics.ThumbnailCacheMissesTotal.Inc()
		return nil, false
	}
	p.mu.Unlock()

	metrics.ThumbnailCacheHitsTotal.Inc()
	return img, true
}

// Put stores a decoded thumbnail, evicting the oldest entries past the
// cache limit.
func (p *Pool) Put(path string, w, h int, img image.Image) {
	if img == nil {
		return
	}
	key := cacheKey{path, w, h}

	p.mu.Lock()
	if _, exists := p.cache[key]; !exists {
		p.cacheOrder = append(p.cacheOrder, key)
		p.cacheBytes += estimateBytes(img)
	}
	p.cache[key] = img

	for p.cacheLimit > 0 && len(p.cacheOrder) > p.cacheLimit {
		oldest := p.cacheOrder[0]
		p.cacheOrder = p.cacheOrder[1:]
		if raw, ok := p.cache[oldest]; ok {
			if old, ok := raw.(image.Image); ok {
				p.cacheBytes -= estimateBytes(old)
			}
			delete(p.cache, oldest)
		}
	}
	entries := len(p.cache)
	bytes := p.cacheBytes
	p.mu.Unlock()

	metrics.ThumbnailCacheEntries.Set(float64(entries))
	metrics.ThumbnailMemoryEstimateBytes.Set(float64(bytes))
}

// dropCacheKeyLocked removes one entry and its order slot.
func (p *Pool) dropCacheKeyLocked(key cacheKey) {
	if raw, ok := p.cache[key]; ok {
		if img, ok := raw.(image.Image); ok {
			p.cacheBytes -= estimateBytes(img)
		}
		delete(p.cache, key)
	}
	for i, k := range p.cacheOrder {
		if k == key {
			p.cacheOrder = append(p.cacheOrder[:i], p.cacheOrder[i+1:]...)
			return
		}
	}
}

// Thumbnail returns the cached thumbnail for path at the given size,
// decoding and caching it on a miss.
func (p *Pool) Thumbnail(path string, w, h int) (image.Image, error) {
	if img, ok := p.Get(path, w, h); ok {
		return img, nil
	}
	img, err := media.DecodeScaled(path, w, h, p.cfg.UseVips)
	if err != nil {
		return nil, err
	}
	p.Put(path, w, h, img)
	return img, nil
}

// CacheSize returns the current number of cached thumbnails.
func (p *Pool) CacheSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// estimateBytes approximates the resident size of a bitmap at 4 bytes per
// pixel.
func estimateBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
