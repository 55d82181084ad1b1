package tiles

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"maplayer/tiles/worker"
)

// Handle is the renderer-facing state of a single tile request. A handle
// starts out pending and flips to loaded exactly once, when the provider
// delivers the image. Loaded and Image are safe to call from any
// goroutine.
type Handle struct {
	Tile Tile

	img atomic.Pointer[image.Image]
}

// NewHandle returns a pending handle. Custom tile sources use this for
// tiles that are still loading.
func NewHandle(t Tile) *Handle {
	return &Handle{Tile: t}
}

// NewLoadedHandle returns a handle that already carries its image.
func NewLoadedHandle(t Tile, img image.Image) *Handle {
	h := NewHandle(t)
	h.complete(img)
	return h
}

func (h *Handle) Loaded() bool { return h.img.Load() != nil }

// Image returns the decoded tile image, or nil while the handle is
// pending.
func (h *Handle) Image() image.Image {
	if p := h.img.Load(); p != nil {
		return *p
	}
	return nil
}

func (h *Handle) complete(img image.Image) { h.img.Store(&img) }

// Source hands out tiles without ever blocking the caller: a request for
// a tile that is not cached returns a pending Handle and schedules the
// fetch on the worker pool. Listeners registered with OnTileLoaded are
// told whenever a fetch completes; they may run on a worker goroutine
// and should only flag a repaint.
type Source struct {
	scheme   *Scheme
	provider Provider
	cache    Cache
	pool     *worker.Pool

	mu      sync.Mutex
	pending map[string]*Handle

	lmu       sync.Mutex
	listeners map[int]func(*Handle)
	nextID    int
}

const defaultWorkers = 8

func NewSource(scheme *Scheme, provider Provider) *Source {
	s := &Source{
		scheme:    scheme,
		provider:  provider,
		cache:     NewImageCache(),
		pool:      worker.NewPool(defaultWorkers),
		pending:   make(map[string]*Handle),
		listeners: make(map[int]func(*Handle)),
	}

	// A combined provider can replace fallback imagery after the fact;
	// treat an upgrade like a fresh load so hosts repaint.
	if up, ok := provider.(interface {
		SetOnUpgrade(func(Tile, image.Image))
	}); ok {
		up.SetOnUpgrade(func(t Tile, img image.Image) {
			s.cache.Set(t.Key(), img)
			s.notify(NewLoadedHandle(t, img))
		})
	}

	return s
}

func (s *Source) Scheme() *Scheme       { return s.scheme }
func (s *Source) Provider() Provider    { return s.provider }
func (s *Source) TileSize(zoom int) int { return s.scheme.TileSize(zoom) }

// GetTile returns a handle for the tile at (x, y, zoom). It never
// blocks: cached tiles come back loaded, anything else comes back
// pending with a fetch scheduled. Indices outside the world grid return
// a handle that stays pending forever.
func (s *Source) GetTile(x, y, zoom int) *Handle {
	t := Tile{X: x, Y: y, Zoom: zoom}
	if !t.Valid() {
		return NewHandle(t)
	}

	key := t.Key()
	if img, ok := s.cache.Get(key); ok {
		return NewLoadedHandle(t, img)
	}

	s.mu.Lock()
	if h, ok := s.pending[key]; ok {
		s.mu.Unlock()
		return h
	}
	h := NewHandle(t)
	s.pending[key] = h
	s.mu.Unlock()

	s.pool.Submit(worker.Task{
		Ctx:  context.Background(),
		Work: func() error { return s.load(h, key) },
	})

	return h
}

func (s *Source) load(h *Handle, key string) error {
	img, err := s.provider.GetTile(h.Tile)
	if err != nil {
		// The handle stays pending; dropping the in-flight marker lets
		// a later request retry.
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		slog.Debug("tile load failed", "tile", h.Tile, "err", err)
		return err
	}

	h.complete(img)
	s.cache.Set(key, img)

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	s.notify(h)
	return nil
}

// OnTileLoaded registers a load listener and returns a function that
// removes it again.
func (s *Source) OnTileLoaded(fn func(*Handle)) (remove func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Source) notify(h *Handle) {
	s.lmu.Lock()
	fns := make([]func(*Handle), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(h)
	}
}

// PendingCount reports how many tile fetches are currently in flight.
func (s *Source) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close shuts down the worker pool. Pending handles never complete after
// Close.
func (s *Source) Close() {
	s.pool.Shutdown()
}
