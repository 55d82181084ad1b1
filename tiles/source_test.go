package tiles

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

type stubProvider struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (p *stubProvider) GetTile(t Tile) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, errors.New("stub failure")
	}
	return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil
}

func (p *stubProvider) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSourceLoadsAsync(t *testing.T) {
	src := NewSource(OSM(), &stubProvider{})
	defer src.Close()

	loaded := make(chan *Handle, 1)
	src.OnTileLoaded(func(h *Handle) {
		select {
		case loaded <- h:
		default:
		}
	})

	h := src.GetTile(3, 4, 5)
	if h.Loaded() {
		t.Fatal("fresh request came back loaded")
	}

	select {
	case got := <-loaded:
		if got.Tile != (Tile{X: 3, Y: 4, Zoom: 5}) {
			t.Errorf("listener got tile %v", got.Tile)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load listener never fired")
	}

	waitFor(t, "handle to load", h.Loaded)
	if h.Image() == nil {
		t.Error("loaded handle has nil image")
	}
	waitFor(t, "pending count to drain", func() bool { return src.PendingCount() == 0 })
}

func TestSourceCachesTiles(t *testing.T) {
	p := &stubProvider{}
	src := NewSource(OSM(), p)
	defer src.Close()

	h := src.GetTile(1, 2, 3)
	waitFor(t, "first load", h.Loaded)

	h2 := src.GetTile(1, 2, 3)
	if !h2.Loaded() {
		t.Fatal("second request for a cached tile came back pending")
	}
	if p.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", p.callCount())
	}
}

func TestSourceDeduplicatesInFlight(t *testing.T) {
	src := NewSource(OSM(), &stubProvider{})
	defer src.Close()

	h1 := src.GetTile(1, 1, 4)
	h2 := src.GetTile(1, 1, 4)
	if h1 != h2 && !h2.Loaded() {
		t.Error("concurrent requests for the same tile got distinct pending handles")
	}
	waitFor(t, "load", h1.Loaded)
}

func TestSourceRetriesAfterError(t *testing.T) {
	p := &stubProvider{fail: true}
	src := NewSource(OSM(), p)
	defer src.Close()

	h := src.GetTile(2, 2, 4)
	waitFor(t, "failed fetch to settle", func() bool {
		return p.callCount() >= 1 && src.PendingCount() == 0
	})
	if h.Loaded() {
		t.Fatal("handle loaded despite provider error")
	}

	p.setFail(false)
	h2 := src.GetTile(2, 2, 4)
	waitFor(t, "retry to load", h2.Loaded)

	// the original handle belongs to the failed attempt and stays pending
	if h.Loaded() {
		t.Error("failed handle was completed by the retry")
	}
}

func TestSourceInvalidTileStaysPending(t *testing.T) {
	p := &stubProvider{}
	src := NewSource(OSM(), p)
	defer src.Close()

	for _, tile := range []Tile{{-1, 0, 3}, {8, 0, 3}, {0, 8, 3}, {0, 0, -1}} {
		h := src.GetTile(tile.X, tile.Y, tile.Zoom)
		if h.Loaded() {
			t.Errorf("out-of-grid tile %v came back loaded", tile)
		}
	}
	if src.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after out-of-grid requests, want 0", src.PendingCount())
	}
	if p.callCount() != 0 {
		t.Errorf("provider called %d times for out-of-grid tiles, want 0", p.callCount())
	}
}

func TestOnTileLoadedRemove(t *testing.T) {
	src := NewSource(OSM(), &stubProvider{})
	defer src.Close()

	var mu sync.Mutex
	var fired int
	remove := src.OnTileLoaded(func(*Handle) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	remove()

	h := src.GetTile(0, 0, 1)
	waitFor(t, "load", h.Loaded)

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("removed listener fired %d times", fired)
	}
}
