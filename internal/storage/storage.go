// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
)

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrVersionConflict      = errors.New("task was modified concurrently")
)

// TaskStore persists tasks and their results. Implementations return copies;
// Save fails with ErrVersionConflict when the stored version differs from
// task.Version and bumps the version on success.
type TaskStore interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	FindAll(ctx context.Context) ([]*models.Task, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*models.Task, error)
	Save(ctx context.Context, task *models.Task) (*models.Task, error)
	SaveResult(ctx context.Context, result *models.TaskResult) error
	FindResultsByTaskID(ctx context.Context, taskID string) ([]*models.TaskResult, error)
}

// NotificationStore persists notifications. Save assigns an ID to new notifications.
type NotificationStore interface {
	Save(ctx context.Context, n *models.Notification) (*models.Notification, error)
	FindByID(ctx context.Context, id int64) (*models.Notification, error)
	FindAll(ctx context.Context) ([]*models.Notification, error)
	FindByUserID(ctx context.Context, userID int64) ([]*models.Notification, error)
	// FindUnread returns an unread notification with the same dedup key, or nil.
	FindUnread(ctx context.Context, key string) (*models.Notification, error)
}

const maxUpdateAttempts = 5

// UpdateTask loads a task, applies mutate and saves it, retrying on version conflicts.
// mutate may be called more than once and must only depend on the task it is given.
func UpdateTask(ctx context.Context, store TaskStore, id string, mutate func(*models.Task) error) (*models.Task, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		task, err := store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := mutate(task); err != nil {
			return nil, err
		}

		saved, err := store.Save(ctx, task)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update task %s: %w", id, lastErr)
}

// FilterOverdue returns the unfinished tasks whose due date is before now
func FilterOverdue(tasks []*models.Task, now time.Time) []*models.Task {
	var out []*models.Task
	for _, t := range tasks {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out
}
