// Package worker provides the bounded pool that runs tile fetches off
// the rendering thread.
package worker

import (
	"context"
	"time"
)

// Task is a unit of work submitted to the pool. Work runs on a pool
// goroutine; when Ctx is cancelled before the work finishes, the worker
// slot is released and the result discarded.
type Task struct {
	Ctx  context.Context
	Work func() error
}

type Pool struct {
	workers chan struct{}
	tasks   chan Task
	quit    chan struct{}
}

func NewPool(maxWorkers int) *Pool {
	p := &Pool{
		workers: make(chan struct{}, maxWorkers),
		tasks:   make(chan Task, 100),
		quit:    make(chan struct{}),
	}

	go p.dispatcher()
	return p
}

func (p *Pool) dispatcher() {
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			select {
			case p.workers <- struct{}{}:
				go p.run(task)
			default:
				// all workers busy, requeue after a beat
				go func() {
					time.Sleep(100 * time.Millisecond)
					p.Submit(task)
				}()
			}
		}
	}
}

func (p *Pool) run(task Task) {
	defer func() { <-p.workers }()

	done := make(chan error, 1)
	go func() {
		done <- task.Work()
	}()

	select {
	case <-task.Ctx.Done():
	case <-done:
	case <-time.After(30 * time.Second):
	}
}

// Submit queues a task, retrying in the background when the queue is
// full. It never blocks the caller. After Shutdown the task is dropped.
func (p *Pool) Submit(task Task) {
	select {
	case <-p.quit:
		return
	default:
	}
	select {
	case p.tasks <- task:
	default:
		go func() {
			time.Sleep(100 * time.Millisecond)
			p.Submit(task)
		}()
	}
}

func (p *Pool) Shutdown() {
	close(p.quit)
}
