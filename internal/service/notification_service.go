// internal/service/notification_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/queue"
	"github.com/fawad-mazhar/taskflow/internal/storage"
)

// NotificationService creates, de-duplicates and publishes notifications
type NotificationService struct {
	store     storage.NotificationStore
	tasks     storage.TaskStore
	publisher queue.Publisher
	log       *logging.Logger

	// serialises the unread lookup with the save that follows it
	mu sync.Mutex
}

func NewNotificationService(store storage.NotificationStore, tasks storage.TaskStore, publisher queue.Publisher, log *logging.Logger) *NotificationService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &NotificationService{
		store:     store,
		tasks:     tasks,
		publisher: publisher,
		log:       log.WithComponent("notifications"),
	}
}

// Notify sends a notification unless an unread one with the same type, user
// and related task exists. It reports whether a new notification was sent.
func (s *NotificationService) Notify(ctx context.Context, typ models.NotificationType, urgency models.Urgency, userID int64, message, relatedTaskID string) (bool, error) {
	n := models.NewNotification(userID, typ, urgency, message, relatedTaskID)

	s.mu.Lock()
	existing, err := s.store.FindUnread(ctx, n.DedupKey())
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("failed to check for duplicate notification: %w", err)
	}
	if existing != nil {
		s.mu.Unlock()
		s.log.Debug("skipping duplicate notification", "type", typ, "user_id", userID, "task_id", relatedTaskID)
		return false, nil
	}

	if err := n.TransitionTo(models.NotificationSent); err != nil {
		s.mu.Unlock()
		return false, err
	}
	saved, err := s.store.Save(ctx, n)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("failed to save notification: %w", err)
	}

	if err := s.publisher.PublishNotification(ctx, saved); err != nil {
		s.log.Warn("failed to publish notification", "id", saved.ID, "error", err)
	}

	s.log.Info("notification sent", "id", saved.ID, "type", typ, "user_id", userID, "urgency", urgency)
	return true, nil
}

// Broadcast sends a notification addressed to the system user
func (s *NotificationService) Broadcast(ctx context.Context, typ models.NotificationType, message string, urgency models.Urgency) (bool, error) {
	return s.Notify(ctx, typ, urgency, models.SystemUserID, message, "")
}

func (s *NotificationService) FindByID(ctx context.Context, id int64) (*models.Notification, error) {
	return s.store.FindByID(ctx, id)
}

func (s *NotificationService) FindAll(ctx context.Context) ([]*models.Notification, error) {
	return s.store.FindAll(ctx)
}

func (s *NotificationService) FindByUserID(ctx context.Context, userID int64) ([]*models.Notification, error) {
	return s.store.FindByUserID(ctx, userID)
}

func (s *NotificationService) FindByUserIDAndRead(ctx context.Context, userID int64, read bool) ([]*models.Notification, error) {
	all, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Notification, 0, len(all))
	for _, n := range all {
		if n.IsRead() == read {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkAsRead marks a notification owned by userID as read
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id int64) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("%w: %d for user %d", storage.ErrNotificationNotFound, id, userID)
	}
	if n.IsRead() {
		return n, nil
	}

	if n.Status == models.NotificationCreated {
		if err := n.TransitionTo(models.NotificationSent); err != nil {
			return nil, err
		}
	}
	if err := n.TransitionTo(models.NotificationRead); err != nil {
		return nil, err
	}

	return s.store.Save(ctx, n)
}

// CheckAndNotifyOverdue notifies the assignees of overdue tasks and returns
// how many notifications were sent
func (s *NotificationService) CheckAndNotifyOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.tasks.FindOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find overdue tasks: %w", err)
	}

	sent := 0
	for _, t := range overdue {
		ok, err := s.Notify(ctx, models.NotificationTaskOverdue, models.UrgencyHigh, t.AssignedUserID,
			fmt.Sprintf("Task '%s' is overdue", t.Title), t.ID)
		if err != nil {
			s.log.Error("failed to notify overdue task", "task_id", t.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}
