// internal/storage/memory/store.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
)

// TaskStore keeps tasks and results in process memory
type TaskStore struct {
	tasks   map[string]*models.Task
	results map[string][]*models.TaskResult
	mu      sync.RWMutex
}

// NewTaskStore creates an empty in-memory task store
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:   make(map[string]*models.Task),
		results: make(map[string][]*models.TaskResult),
	}
}

func (s *TaskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

func (s *TaskStore) FindAll(ctx context.Context) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *TaskStore) FindOverdue(ctx context.Context, now time.Time) ([]*models.Task, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return storage.FilterOverdue(all, now), nil
}

func (s *TaskStore) Save(ctx context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[task.ID]; ok {
		if existing.Version != task.Version {
			return nil, fmt.Errorf("%w: %s (have %d, stored %d)", storage.ErrVersionConflict, task.ID, task.Version, existing.Version)
		}
	} else if task.Version != 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrTaskNotFound, task.ID)
	}

	stored := task.Clone()
	stored.Version++
	s.tasks[task.ID] = stored
	return stored.Clone(), nil
}

func (s *TaskStore) SaveResult(ctx context.Context, result *models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *result
	s.results[result.TaskID] = append(s.results[result.TaskID], &r)
	return nil
}

func (s *TaskStore) FindResultsByTaskID(ctx context.Context, taskID string) ([]*models.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TaskResult, 0, len(s.results[taskID]))
	for _, r := range s.results[taskID] {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}
