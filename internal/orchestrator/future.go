// internal/orchestrator/future.go
package orchestrator

import (
	"context"
	"sync"

	"github.com/fawad-mazhar/taskflow/internal/models"
)

// Future is the pending outcome of a task execution
type Future struct {
	done chan struct{}
	once sync.Once
	task *models.Task
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolvedFuture returns a future that is already complete
func resolvedFuture(task *models.Task, err error) *Future {
	f := newFuture()
	f.resolve(task, err)
	return f
}

func (f *Future) resolve(task *models.Task, err error) {
	f.once.Do(func() {
		f.task = task
		f.err = err
		close(f.done)
	})
}

// Done is closed once the outcome is known
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the execution finishes or ctx ends. A nil task with a nil
// error means nothing was executed.
func (f *Future) Wait(ctx context.Context) (*models.Task, error) {
	select {
	case <-f.done:
		return f.task, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
