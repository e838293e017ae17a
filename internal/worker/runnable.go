// internal/worker/runnable.go
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
)

// Runnable is an executable task type
type Runnable interface {
	Run(ctx context.Context, task *models.Task) (*models.TaskResult, error)
	Name() string
	Description() string
}

// PanicError wraps a panic raised by a task implementation
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

type timedRunnable struct {
	Runnable
	log *logging.Logger
}

// WithTiming wraps r so every run logs its start, outcome and duration.
// Panics inside r are returned as *PanicError.
func WithTiming(r Runnable, log *logging.Logger) Runnable {
	if _, ok := r.(*timedRunnable); ok {
		return r
	}
	return &timedRunnable{Runnable: r, log: log}
}

func (t *timedRunnable) Run(ctx context.Context, task *models.Task) (result *models.TaskResult, err error) {
	log := t.log.WithTask(task.ID).With("task_type", t.Name())
	start := time.Now()
	log.Info("executing task", "title", task.Title)

	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
			result = nil
		}

		elapsed := time.Since(start)
		if err != nil {
			log.Error("task failed", "error", err, "duration_ms", elapsed.Milliseconds())
			return
		}
		if result == nil {
			err = fmt.Errorf("task type %s returned no result", t.Name())
			log.Error("task failed", "error", err, "duration_ms", elapsed.Milliseconds())
			return
		}
		log.Info("task completed", "duration_ms", elapsed.Milliseconds())
	}()

	return t.Runnable.Run(ctx, task)
}

// Func adapts a plain function into a Runnable
type Func struct {
	TypeName string
	Summary  string
	Fn       func(ctx context.Context, task *models.Task) (*models.TaskResult, error)
}

func (f Func) Run(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	return f.Fn(ctx, task)
}

func (f Func) Name() string        { return f.TypeName }
func (f Func) Description() string { return f.Summary }
