// internal/runner/runner.go
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/queue"
	"github.com/google/uuid"
)

// Scheduler is the part of the processor driven by the runner
type Scheduler interface {
	PollReadyTasks(ctx context.Context) (int, error)
	PoolStats() models.PoolStats
	InFlight() int
	Shutdown(timeout time.Duration) error
}

// OverdueChecker notifies the assignees of overdue tasks
type OverdueChecker interface {
	CheckAndNotifyOverdue(ctx context.Context, now time.Time) (int, error)
}

// Runner drives the periodic work: polling for ready tasks, overdue checks
// and health status publishing
type Runner struct {
	id        string
	config    config.SchedulingConfig
	scheduler Scheduler
	overdue   OverdueChecker
	publisher queue.Publisher
	log       *logging.Logger

	loops        sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
	isShutdown   bool
	shutdownLock sync.RWMutex
}

func NewRunner(cfg config.SchedulingConfig, scheduler Scheduler, overdue OverdueChecker, publisher queue.Publisher, log *logging.Logger) *Runner {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	id := uuid.New().String()
	return &Runner{
		id:        id,
		config:    cfg,
		scheduler: scheduler,
		overdue:   overdue,
		publisher: publisher,
		log:       log.WithComponent("runner").With("runner_id", id),
		stopChan:  make(chan struct{}),
	}
}

// Start runs the periodic loops until ctx is done or Shutdown is called
func (r *Runner) Start(ctx context.Context) error {
	if r.IsShutdown() {
		return fmt.Errorf("runner %s is shut down", r.id)
	}

	r.log.Info("starting runner",
		"ready_poll", r.config.ReadyPollInterval(),
		"overdue_check", r.config.NotificationCheckInterval(),
		"health_check", r.config.HealthCheckInterval())

	if err := r.publishStatus(models.SchedulerStarted); err != nil {
		r.log.Warn("failed to publish start status", "error", err)
	}

	r.loops.Add(2)
	go r.every(ctx, r.config.NotificationCheckInterval(), r.checkOverdue)
	go r.every(ctx, r.config.HealthCheckInterval(), r.publishHealth)

	r.loops.Add(1)
	r.every(ctx, r.config.ReadyPollInterval(), r.pollReady)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// every calls fn immediately and then on each tick until the runner stops
func (r *Runner) every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	defer r.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(ctx)

		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) pollReady(ctx context.Context) {
	if _, err := r.scheduler.PollReadyTasks(ctx); err != nil {
		r.log.Error("ready task poll failed", "error", err)
	}
}

func (r *Runner) checkOverdue(ctx context.Context) {
	if r.overdue == nil {
		return
	}
	sent, err := r.overdue.CheckAndNotifyOverdue(ctx, time.Now())
	if err != nil {
		r.log.Error("overdue check failed", "error", err)
		return
	}
	if sent > 0 {
		r.log.Info("sent overdue notifications", "count", sent)
	}
}

func (r *Runner) publishHealth(context.Context) {
	if err := r.publishStatus(models.SchedulerHealthy); err != nil {
		r.log.Warn("failed to publish health status", "error", err)
	}
}

// Shutdown stops the loops and drains the worker pool
func (r *Runner) Shutdown(timeout time.Duration) error {
	if err := r.publishStatus(models.SchedulerStopping); err != nil {
		r.log.Warn("failed to publish stopping status", "error", err)
	}

	r.shutdownLock.Lock()
	r.isShutdown = true
	r.shutdownLock.Unlock()

	r.stopOnce.Do(func() { close(r.stopChan) })

	done := make(chan struct{})
	go func() {
		r.loops.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
	case <-time.After(timeout):
		shutdownErr = fmt.Errorf("runner loops did not stop within %v", timeout)
	}

	if err := r.scheduler.Shutdown(timeout); err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	if err := r.publishStatus(models.SchedulerStopped); err != nil {
		r.log.Warn("failed to publish stopped status", "error", err)
	}

	r.log.Info("runner stopped")
	return shutdownErr
}

// IsShutdown returns the current shutdown status
func (r *Runner) IsShutdown() bool {
	r.shutdownLock.RLock()
	defer r.shutdownLock.RUnlock()
	return r.isShutdown
}

func (r *Runner) publishStatus(event models.SchedulerEventType) error {
	now := time.Now()
	status := &models.SchedulerStatus{
		ID:        r.id,
		Event:     event,
		Timestamp: now,
		Pool:      r.scheduler.PoolStats(),
		InFlight:  r.scheduler.InFlight(),
	}

	msg := &models.StatusMessage{
		Type:      "scheduler",
		ID:        r.id,
		Status:    string(event),
		Timestamp: now,
		Metadata:  status,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.publisher.PublishStatus(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}
