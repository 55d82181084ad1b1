package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(4)
	defer p.Shutdown()

	const n = 20
	var done atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		p.Submit(Task{
			Ctx: context.Background(),
			Work: func() error {
				done.Add(1)
				wg.Done()
				return nil
			},
		})
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatalf("only %d of %d tasks ran", done.Load(), n)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 2
	p := NewPool(workers)
	defer p.Shutdown()

	var cur, peak atomic.Int32
	var wg sync.WaitGroup
	wg.Add(8)

	for i := 0; i < 8; i++ {
		p.Submit(Task{
			Ctx: context.Background(),
			Work: func() error {
				n := cur.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				cur.Add(-1)
				wg.Done()
				return nil
			},
		})
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("tasks did not finish")
	}

	if peak.Load() > workers {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), workers)
	}
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	p := NewPool(1)
	defer p.Shutdown()

	release := make(chan struct{})
	for i := 0; i < 200; i++ {
		p.Submit(Task{
			Ctx: context.Background(),
			Work: func() error {
				<-release
				return nil
			},
		})
	}
	// reaching this point at all is the assertion
	close(release)
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool(1)

	// saturate the worker and the queue so further submits hit the
	// retry path
	block := make(chan struct{})
	defer close(block)
	for i := 0; i < 150; i++ {
		p.Submit(Task{
			Ctx: context.Background(),
			Work: func() error {
				<-block
				return nil
			},
		})
	}
	p.Shutdown()

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		p.Submit(Task{
			Ctx:  context.Background(),
			Work: func() error { ran.Add(1); return nil },
		})
	}

	// give any lingering retry goroutines time to drain and exit
	time.Sleep(300 * time.Millisecond)
	before := runtime.NumGoroutine()
	time.Sleep(300 * time.Millisecond)
	after := runtime.NumGoroutine()

	if after > before {
		t.Errorf("goroutines still spawning after shutdown: %d -> %d", before, after)
	}
	if n := ran.Load(); n != 0 {
		t.Errorf("%d tasks ran after shutdown, want 0", n)
	}
}
