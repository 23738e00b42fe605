// Package workerpool bounds the goroutines used for bridge message
// dispatch so a chatty renderer cannot fan out unbounded work.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/agentsolvr/shell/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Queued    int   `json:"queued"`
}

// Pool runs tasks on a fixed number of goroutines behind a bounded
// queue. When the queue is full, Submit rejects instead of blocking.
type Pool struct {
	name  string
	queue chan Task
	wg    sync.WaitGroup

	accepting atomic.Bool
	quit      chan struct{}
	quitOnce  sync.Once
	closeOnce sync.Once

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
}

// New starts a named pool with the given worker count and queue depth.
func New(name string, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		name:  name,
		queue: make(chan Task, queueSize),
		quit:  make(chan struct{}),
	}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Info("pool started", "pool", name, "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task. Returns false once the pool stops accepting
// or when the queue is full. wg.Add happens before the enqueue attempt
// so Drain cannot miss a task that is already on its way in.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	default:
		p.wg.Done()
		p.rejected.Add(1)
		log.Warn("queue full, task rejected", "pool", p.name)
		return false
	}
}

// Stats reports cumulative counters and the current queue depth.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
		Queued:    len(p.queue),
	}
}

// StopAccepting rejects all further submissions.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for queued and in-flight tasks to finish, bounded by the
// context. Call StopAccepting first. After Drain returns the workers
// have exited.
func (p *Pool) Drain(ctx context.Context) {
	p.quitOnce.Do(func() {
		close(p.quit)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("pool drained", "pool", p.name, "completed", p.completed.Load())
	case <-ctx.Done():
		log.Warn("pool drain timed out", "pool", p.name, "queued", len(p.queue))
	}

	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

func (p *Pool) worker() {
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(task)
		case <-p.quit:
			// finish whatever is already queued, then exit
			for {
				select {
				case task, ok := <-p.queue:
					if !ok {
						return
					}
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

// run pairs with the wg.Add in Submit.
func (p *Pool) run(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "pool", p.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
	p.completed.Add(1)
}
