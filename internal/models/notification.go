// internal/models/notification.go
package models

import (
	"fmt"
	"time"
)

// NotificationStatus is the delivery state of a notification
type NotificationStatus string

const (
	NotificationCreated   NotificationStatus = "CREATED"
	NotificationSent      NotificationStatus = "SENT"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationRead      NotificationStatus = "READ"
	NotificationArchived  NotificationStatus = "ARCHIVED"
)

var notificationTransitions = map[NotificationStatus][]NotificationStatus{
	NotificationCreated:   {NotificationSent},
	NotificationSent:      {NotificationDelivered, NotificationRead},
	NotificationDelivered: {NotificationRead},
	NotificationRead:      {NotificationArchived},
}

// Urgency of a notification
type Urgency string

const (
	UrgencyHigh   Urgency = "HIGH"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyLow    Urgency = "LOW"
)

// NotificationType classifies what a notification is about
type NotificationType string

const (
	NotificationTaskStarted   NotificationType = "TASK_STARTED"
	NotificationTaskCompleted NotificationType = "TASK_COMPLETED"
	NotificationTaskError     NotificationType = "TASK_ERROR"
	NotificationTaskOverdue   NotificationType = "TASK_OVERDUE"
	NotificationDeadlock      NotificationType = "DEADLOCK_DETECTED"
	NotificationGeneric       NotificationType = "NOTIFICATION"
)

// SystemUserID addresses notifications that belong to no particular user
const SystemUserID int64 = 0

// Notification is a message about a task or the system addressed to a user
type Notification struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"userId"`
	Message       string             `json:"message"`
	Urgency       Urgency            `json:"urgency"`
	Type          NotificationType   `json:"type"`
	RelatedTaskID string             `json:"relatedTaskId,omitempty"`
	Status        NotificationStatus `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
	SentAt        *time.Time         `json:"sentAt,omitempty"`
	DeliveredAt   *time.Time         `json:"deliveredAt,omitempty"`
	ReadAt        *time.Time         `json:"readAt,omitempty"`
}

// NewNotification creates a notification in the CREATED state
func NewNotification(userID int64, typ NotificationType, urgency Urgency, message, relatedTaskID string) *Notification {
	return &Notification{
		UserID:        userID,
		Message:       message,
		Urgency:       urgency,
		Type:          typ,
		RelatedTaskID: relatedTaskID,
		Status:        NotificationCreated,
		CreatedAt:     time.Now(),
	}
}

// TransitionTo advances the delivery state and stamps the matching timestamp
func (n *Notification) TransitionTo(next NotificationStatus) error {
	allowed := false
	for _, s := range notificationTransitions[n.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid notification status transition: %s -> %s", n.Status, next)
	}

	now := time.Now()
	switch next {
	case NotificationSent:
		n.SentAt = &now
	case NotificationDelivered:
		n.DeliveredAt = &now
	case NotificationRead:
		n.ReadAt = &now
	}
	n.Status = next
	return nil
}

// IsRead reports whether the user has seen the notification
func (n *Notification) IsRead() bool {
	return n.Status == NotificationRead || n.Status == NotificationArchived
}

// DedupKey identifies notifications that must not be outstanding twice
func (n *Notification) DedupKey() string {
	return fmt.Sprintf("%s:%d:%s", n.Type, n.UserID, n.RelatedTaskID)
}
