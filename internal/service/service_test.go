package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/storage/memory"
	"github.com/fawad-mazhar/taskflow/internal/worker"
	"github.com/stretchr/testify/require"
)

// recordingPublisher keeps what would have been sent to the broker
type recordingPublisher struct {
	mu            sync.Mutex
	notifications []*models.Notification
	statuses      []*models.StatusMessage
}

func (p *recordingPublisher) PublishNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
	return nil
}

func (p *recordingPublisher) PublishStatus(_ context.Context, s *models.StatusMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notifications)
}

type env struct {
	tasks         *memory.TaskStore
	notifications *memory.NotificationStore
	publisher     *recordingPublisher
	registry      *worker.Registry
	processor     *orchestrator.Processor

	taskService         *TaskService
	queueService        *QueueService
	notificationService *NotificationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logging.NopLogger()

	e := &env{
		tasks:         memory.NewTaskStore(),
		notifications: memory.NewNotificationStore(),
		publisher:     &recordingPublisher{},
		registry:      worker.NewRegistry(log),
	}
	e.notificationService = NewNotificationService(e.notifications, e.tasks, e.publisher, log)
	e.taskService = NewTaskService(e.tasks, log)

	pool := worker.NewPool(2, 10, log)
	t.Cleanup(func() { _ = pool.Shutdown(2 * time.Second) })

	e.processor = orchestrator.NewProcessor(orchestrator.ProcessorConfig{SyncTimeout: 2 * time.Second},
		e.tasks, e.registry, e.notificationService, pool, log)
	e.queueService = NewQueueService(e.tasks, e.processor, log)

	require.NoError(t, e.registry.Register("echo", worker.Func{
		TypeName: "echo",
		Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
			return models.NewTaskResult("echo", task.Description), nil
		},
	}))
	return e
}

func timePtr(t time.Time) *time.Time { return &t }
