// internal/storage/memory/notifications.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
)

// NotificationStore keeps notifications in process memory
type NotificationStore struct {
	items  map[int64]*models.Notification
	nextID int64
	mu     sync.RWMutex
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{items: make(map[int64]*models.Notification)}
}

func (s *NotificationStore) Save(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	}
	s.items[c.ID] = &c

	out := c
	return &out, nil
}

func (s *NotificationStore) FindByID(ctx context.Context, id int64) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", storage.ErrNotificationNotFound, id)
	}
	c := *n
	return &c, nil
}

func (s *NotificationStore) FindAll(ctx context.Context) ([]*models.Notification, error) {
	return s.filter(func(*models.Notification) bool { return true }), nil
}

func (s *NotificationStore) FindByUserID(ctx context.Context, userID int64) ([]*models.Notification, error) {
	return s.filter(func(n *models.Notification) bool { return n.UserID == userID }), nil
}

func (s *NotificationStore) FindUnread(ctx context.Context, key string) (*models.Notification, error) {
	matches := s.filter(func(n *models.Notification) bool { return !n.IsRead() && n.DedupKey() == key })
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (s *NotificationStore) filter(keep func(*models.Notification) bool) []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Notification, 0)
	for _, n := range s.items {
		if keep(n) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
