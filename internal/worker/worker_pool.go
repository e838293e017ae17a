// internal/worker/worker_pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
)

var (
	ErrQueueFull  = errors.New("task queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

// Job is a unit of work executed by the pool. ctx is cancelled on forced shutdown.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue
type Pool struct {
	size     int
	capacity int
	jobs     chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *logging.Logger

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64

	closed bool
	mu     sync.RWMutex
}

// NewPool starts size workers sharing a queue of the given capacity
func NewPool(size, capacity int, log *logging.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if capacity < 0 {
		capacity = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:     size,
		capacity: capacity,
		jobs:     make(chan Job, capacity),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.WithComponent("worker-pool"),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("worker pool started", "workers", size, "queue_capacity", capacity)
	return p
}

// Submit queues job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.rejected.Add(1)
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.active.Add(1)
		p.run(n, job)
		p.active.Add(-1)
		p.completed.Add(1)
	}
}

func (p *Pool) run(n int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", "worker", n, "panic", r)
		}
	}()
	job(p.ctx)
}

// Stats reports the pool counters
func (p *Pool) Stats() models.PoolStats {
	return models.PoolStats{
		PoolSize:       p.size,
		ActiveWorkers:  int(p.active.Load()),
		QueuedTasks:    len(p.jobs),
		QueueCapacity:  p.capacity,
		SubmittedTasks: p.submitted.Load(),
		CompletedTasks: p.completed.Load(),
		RejectedTasks:  p.rejected.Load(),
	}
}

// Shutdown stops accepting jobs and waits up to timeout for queued and
// running jobs. After that the job context is cancelled and the pool waits
// one more timeout before giving up.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("worker pool stopped")
		return nil
	case <-time.After(timeout):
	}

	p.log.Warn("worker pool did not drain in time, cancelling running jobs", "timeout", timeout)
	p.cancel()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %v", 2*timeout)
	}
}
