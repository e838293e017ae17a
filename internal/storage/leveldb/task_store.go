// internal/storage/leveldb/task_store.go
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	taskPrefix   = "task:"
	resultPrefix = "result:"
)

// TaskStore persists tasks and results in LevelDB
type TaskStore struct {
	client *Client
	mu     sync.Mutex // serialises version checks on Save
}

func NewTaskStore(client *Client) *TaskStore {
	return &TaskStore{client: client}
}

func taskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

// resultKey orders results of one task by timestamp
func resultKey(r *models.TaskResult) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", resultPrefix, r.TaskID, r.Timestamp.UnixNano(), r.ID))
}

func (s *TaskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	data, err := s.client.db.Get(taskKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to read task %s: %w", id, err)
	}

	var task models.Task
	if err := s.client.codec.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

func (s *TaskStore) FindAll(ctx context.Context) ([]*models.Task, error) {
	iter := s.client.db.NewIterator(util.BytesPrefix([]byte(taskPrefix)), nil)
	defer iter.Release()

	tasks := make([]*models.Task, 0)
	for iter.Next() {
		var task models.Task
		if err := s.client.codec.Unmarshal(iter.Value(), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %s: %w", iter.Key(), err)
		}
		tasks = append(tasks, &task)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
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

	existing, err := s.FindByID(ctx, task.ID)
	switch {
	case err == nil:
		if existing.Version != task.Version {
			return nil, fmt.Errorf("%w: %s (have %d, stored %d)", storage.ErrVersionConflict, task.ID, task.Version, existing.Version)
		}
	case errors.Is(err, storage.ErrTaskNotFound):
		if task.Version != 0 {
			return nil, err
		}
	default:
		return nil, err
	}

	stored := task.Clone()
	stored.Version++

	data, err := s.client.codec.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.db.Put(taskKey(stored.ID), data, nil); err != nil {
		return nil, fmt.Errorf("failed to write task %s: %w", stored.ID, err)
	}
	return stored, nil
}

func (s *TaskStore) SaveResult(ctx context.Context, result *models.TaskResult) error {
	data, err := s.client.codec.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return s.client.db.Put(resultKey(result), data, nil)
}

func (s *TaskStore) FindResultsByTaskID(ctx context.Context, taskID string) ([]*models.TaskResult, error) {
	iter := s.client.db.NewIterator(util.BytesPrefix([]byte(resultPrefix+taskID+":")), nil)
	defer iter.Release()

	results := make([]*models.TaskResult, 0)
	for iter.Next() {
		var r models.TaskResult
		if err := s.client.codec.Unmarshal(iter.Value(), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		results = append(results, &r)
	}
	return results, iter.Error()
}
