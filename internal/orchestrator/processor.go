// internal/orchestrator/processor.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/fawad-mazhar/taskflow/internal/worker"
	"github.com/google/uuid"
)

// ErrExecutionTimeout is returned by ExecuteSync when the task did not finish in time
var ErrExecutionTimeout = errors.New("task execution timed out")

// DefaultSyncTimeout bounds ExecuteSync when no timeout is configured
const DefaultSyncTimeout = 5 * time.Minute

// Notifier receives task lifecycle notifications
type Notifier interface {
	Notify(ctx context.Context, typ models.NotificationType, urgency models.Urgency, userID int64, message, relatedTaskID string) (bool, error)
}

// ProcessorConfig tunes a Processor
type ProcessorConfig struct {
	SyncTimeout time.Duration
}

// Processor runs ready tasks on the worker pool
type Processor struct {
	id       string
	config   ProcessorConfig
	store    storage.TaskStore
	registry *worker.Registry
	notifier Notifier
	pool     *worker.Pool
	log      *logging.Logger

	inFlight sync.Map
	now      func() time.Time
}

func NewProcessor(cfg ProcessorConfig, store storage.TaskStore, registry *worker.Registry, notifier Notifier, pool *worker.Pool, log *logging.Logger) *Processor {
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}

	id := uuid.New().String()
	return &Processor{
		id:       id,
		config:   cfg,
		store:    store,
		registry: registry,
		notifier: notifier,
		pool:     pool,
		log:      log.WithComponent("processor").With("processor_id", id),
		now:      time.Now,
	}
}

// ID identifies this processor instance
func (p *Processor) ID() string {
	return p.id
}

// ExecuteAsync submits the task if it is ready to run. Unknown, unready and
// already running tasks produce a resolved future with no task.
func (p *Processor) ExecuteAsync(ctx context.Context, taskID string) *Future {
	task, err := p.store.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			p.log.Warn("task not found", "task_id", taskID)
			return resolvedFuture(nil, nil)
		}
		return resolvedFuture(nil, err)
	}

	ready, err := p.IsReady(ctx, task)
	if err != nil {
		return resolvedFuture(nil, err)
	}
	if !ready {
		p.log.Info("task is not ready to run", "task_id", taskID, "status", task.Status)
		return resolvedFuture(nil, nil)
	}

	f, _, _ := p.submit(taskID)
	return f
}

// Dispatch submits a task without checking readiness. It is used for tasks
// taken off a TaskQueue. When the pool rejects the task the error is returned
// and nothing is left in flight. A task already in flight gets a resolved
// future with no task.
func (p *Processor) Dispatch(ctx context.Context, task *models.Task) (*Future, error) {
	f, _, err := p.submit(task.ID)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ExecuteSync runs the task and waits for it. When timeout passes the task
// keeps running in the background and ErrExecutionTimeout is returned.
func (p *Processor) ExecuteSync(ctx context.Context, taskID string, timeout time.Duration) (*models.Task, error) {
	if timeout <= 0 {
		timeout = p.config.SyncTimeout
	}

	f := p.ExecuteAsync(ctx, taskID)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task, err := f.Wait(waitCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: task %s after %v", ErrExecutionTimeout, taskID, timeout)
	}
	return task, err
}

// PollReadyTasks checks the task graph for deadlocks and submits every ready
// task. It returns the number of tasks submitted.
func (p *Processor) PollReadyTasks(ctx context.Context) (int, error) {
	tasks, err := p.store.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks: %w", err)
	}

	report := DetectDeadlocks(BuildGraph(tasks))
	if report.HasDeadlock {
		p.log.Warn("deadlock detected", "participants", report.Participants, "cycles", len(report.Cycles))
		p.notify(ctx, models.NotificationDeadlock, models.UrgencyHigh, models.SystemUserID,
			"Deadlock detected among tasks: "+strings.Join(report.Participants, ", "), "")
	}

	submitted := 0
	for _, task := range ReadyTasks(tasks, p.now()) {
		if _, ok, _ := p.submit(task.ID); ok {
			submitted++
		}
	}

	if submitted > 0 {
		p.log.Info("submitted ready tasks", "count", submitted)
	}
	return submitted, nil
}

// PoolStats reports the worker pool counters
func (p *Processor) PoolStats() models.PoolStats {
	return p.pool.Stats()
}

// InFlight returns the number of tasks submitted and not yet finished
func (p *Processor) InFlight() int {
	n := 0
	p.inFlight.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Shutdown drains the worker pool
func (p *Processor) Shutdown(timeout time.Duration) error {
	return p.pool.Shutdown(timeout)
}

// IsReady checks the task against the current state of its dependencies
func (p *Processor) IsReady(ctx context.Context, task *models.Task) (bool, error) {
	done := make(map[string]bool, len(task.Dependencies))
	for _, depID := range task.Dependencies {
		dep, err := p.store.FindByID(ctx, depID)
		if err != nil {
			if errors.Is(err, storage.ErrTaskNotFound) {
				continue
			}
			return false, err
		}
		done[depID] = dep.Completed
	}
	return task.IsReadyToRun(p.now(), func(id string) bool { return done[id] }), nil
}

// submit hands the task to the pool unless it is already in flight here.
// The returned bool reports whether a new execution was queued; err is the
// pool's rejection, which also fails the returned future.
func (p *Processor) submit(taskID string) (*Future, bool, error) {
	if _, loaded := p.inFlight.LoadOrStore(taskID, struct{}{}); loaded {
		p.log.Debug("task already in flight", "task_id", taskID)
		return resolvedFuture(nil, nil), false, nil
	}

	f := newFuture()
	err := p.pool.Submit(func(ctx context.Context) {
		var (
			task *models.Task
			err  error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s execution panicked: %v", taskID, r)
			}
			p.inFlight.Delete(taskID)
			f.resolve(task, err)
		}()

		task, err = p.run(ctx, taskID)
	})
	if err != nil {
		p.inFlight.Delete(taskID)
		p.log.Warn("failed to submit task", "task_id", taskID, "error", err)
		err = fmt.Errorf("failed to submit task %s: %w", taskID, err)
		f.resolve(nil, err)
		return f, false, err
	}

	return f, true, nil
}

// run executes one task on a worker goroutine
func (p *Processor) run(ctx context.Context, taskID string) (*models.Task, error) {
	log := p.log.WithTask(taskID)

	task, err := storage.UpdateTask(ctx, p.store, taskID, func(t *models.Task) error {
		if t.Status == models.TaskStatusRunning {
			return nil
		}
		return t.TransitionTo(models.TaskStatusRunning)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark task %s running: %w", taskID, err)
	}

	p.notify(ctx, models.NotificationTaskStarted, models.UrgencyNormal, task.AssignedUserID,
		fmt.Sprintf("Task '%s' has started", task.Title), task.ID)

	impl, ok := p.registry.Lookup(task.TaskType)
	if !ok {
		log.Error("no implementation registered for task type", "task_type", task.TaskType)
		p.notify(ctx, models.NotificationTaskError, models.UrgencyHigh, task.AssignedUserID,
			fmt.Sprintf("No implementation found for task type: %s", task.TaskType), task.ID)
		return task, nil
	}

	result, runErr := impl.Run(ctx, task.Clone())
	if runErr != nil {
		failed, err := storage.UpdateTask(ctx, p.store, taskID, func(t *models.Task) error {
			return t.Fail(runErr)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record failure of task %s: %w", taskID, err)
		}

		p.notify(ctx, models.NotificationTaskError, models.UrgencyHigh, task.AssignedUserID,
			fmt.Sprintf("Error executing task '%s': %v", task.Title, runErr), task.ID)
		return failed, nil
	}

	result.TaskID = task.ID
	if err := p.store.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save result of task %s: %w", taskID, err)
	}

	done, err := storage.UpdateTask(ctx, p.store, taskID, func(t *models.Task) error {
		r := *result
		t.Result = &r
		if t.Completed {
			return nil
		}
		return t.Complete()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}

	p.notify(ctx, models.NotificationTaskCompleted, models.UrgencyHigh, task.AssignedUserID,
		fmt.Sprintf("Task '%s' has been completed", task.Title), task.ID)
	return done, nil
}

// notify sends a notification; failures are only logged
func (p *Processor) notify(ctx context.Context, typ models.NotificationType, urgency models.Urgency, userID int64, message, relatedTaskID string) {
	if p.notifier == nil {
		return
	}
	if _, err := p.notifier.Notify(ctx, typ, urgency, userID, message, relatedTaskID); err != nil {
		p.log.Warn("failed to send notification", "type", typ, "task_id", relatedTaskID, "error", err)
	}
}
