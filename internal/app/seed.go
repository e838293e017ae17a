// internal/app/seed.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/worker"
)

const (
	SeedUserID    int64 = 1
	SeedQueueName       = "Main Processing Queue"
)

// SeedResult describes what Seed created
type SeedResult struct {
	Tasks    []*models.Task
	Queue    *models.TaskQueue
	Deadlock models.DeadlockReport
	Futures  []*orchestrator.Future
}

// Seed creates a small demo workload: two runnable tasks and a plain task
// that depends on the report, all queued on a processing queue.
func (a *App) Seed(ctx context.Context) (*SeedResult, error) {
	now := time.Now()
	due := func(minutes int) *time.Time {
		t := now.Add(time.Duration(minutes) * time.Minute)
		return &t
	}

	pi, err := a.Tasks.CreateRunnableTask(ctx, "Calculate Pi", "iterations=1000", due(5), SeedUserID, worker.CalculatePiType, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seed pi task: %w", err)
	}

	report, err := a.Tasks.CreateRunnableTask(ctx, "Generate Report", "type=sales", due(10), SeedUserID, worker.GenerateReportType, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seed report task: %w", err)
	}

	send, err := a.Tasks.CreateTask(ctx, "Send Notifications", "Notify the team once the report is ready", due(15), SeedUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed notification task: %w", err)
	}

	send, err = a.Tasks.AddDependency(ctx, send.ID, report.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed dependency: %w", err)
	}

	result := &SeedResult{Tasks: []*models.Task{pi, report, send}}

	result.Deadlock, err = a.Tasks.DetectDeadlocks(ctx)
	if err != nil {
		return nil, err
	}
	if result.Deadlock.HasDeadlock {
		a.Log.Warn("seeded tasks contain a deadlock", "cycles", len(result.Deadlock.Cycles))
	} else {
		a.Log.Info("no deadlocks in seeded tasks")
	}

	result.Queue, err = a.Queues.CreateQueue(SeedQueueName)
	if err != nil {
		return nil, err
	}
	for _, t := range []*models.Task{pi, report} {
		if _, err := a.Queues.Enqueue(ctx, result.Queue.ID, t.ID); err != nil {
			return nil, fmt.Errorf("failed to enqueue task %s: %w", t.ID, err)
		}
	}

	result.Futures, err = a.Queues.ProcessAll(ctx, result.Queue.ID)
	if err != nil {
		return nil, err
	}

	a.Log.Info("seed complete",
		"tasks", len(result.Tasks),
		"queue_id", result.Queue.ID,
		"dispatched", len(result.Futures),
	)
	return result, nil
}
