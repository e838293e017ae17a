// internal/service/task_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/storage"
)

var (
	ErrInvalidTask     = errors.New("invalid task")
	ErrSelfDependency  = errors.New("task cannot depend on itself")
	ErrDependencyCycle = errors.New("dependency would create a cycle")
)

// TaskService manages tasks and their dependency graph
type TaskService struct {
	store storage.TaskStore
	log   *logging.Logger

	// dependency edits: the cycle check and the commit must not interleave
	depMu sync.Mutex
}

func NewTaskService(store storage.TaskStore, log *logging.Logger) *TaskService {
	return &TaskService{
		store: store,
		log:   log.WithComponent("tasks"),
	}
}

func (s *TaskService) CreateTask(ctx context.Context, title, description string, dueDate *time.Time, userID int64) (*models.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	return s.save(ctx, models.NewTask(title, description, dueDate, userID))
}

func (s *TaskService) CreateRunnableTask(ctx context.Context, title, description string, dueDate *time.Time, userID int64, taskType string, scheduledTime *time.Time) (*models.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if taskType == "" {
		return nil, fmt.Errorf("%w: task type is required", ErrInvalidTask)
	}
	return s.save(ctx, models.NewRunnableTask(title, description, dueDate, userID, taskType, scheduledTime))
}

func (s *TaskService) save(ctx context.Context, task *models.Task) (*models.Task, error) {
	saved, err := s.store.Save(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}
	s.log.Info("task created", "task_id", saved.ID, "title", saved.Title, "task_type", saved.TaskType)
	return saved, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id, title, description string, dueDate *time.Time) (*models.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	return storage.UpdateTask(ctx, s.store, id, func(t *models.Task) error {
		t.UpdateDetails(title, description, dueDate)
		return nil
	})
}

// CompleteTask marks a task DONE by hand
func (s *TaskService) CompleteTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := storage.UpdateTask(ctx, s.store, id, func(t *models.Task) error {
		return t.Complete()
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task completed manually", "task_id", id)
	return task, nil
}

func (s *TaskService) FindByID(ctx context.Context, id string) (*models.Task, error) {
	return s.store.FindByID(ctx, id)
}

func (s *TaskService) FindAll(ctx context.Context) ([]*models.Task, error) {
	return s.store.FindAll(ctx)
}

func (s *TaskService) filter(ctx context.Context, keep func(*models.Task) bool) ([]*models.Task, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TaskService) FindByUserID(ctx context.Context, userID int64) ([]*models.Task, error) {
	return s.filter(ctx, func(t *models.Task) bool { return t.AssignedUserID == userID })
}

func (s *TaskService) FindByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	return s.filter(ctx, func(t *models.Task) bool { return t.Status == status })
}

func (s *TaskService) FindByUserIDAndStatus(ctx context.Context, userID int64, status models.TaskStatus) ([]*models.Task, error) {
	return s.filter(ctx, func(t *models.Task) bool {
		return t.AssignedUserID == userID && t.Status == status
	})
}

// FindReadyToRun returns the tasks that could be dispatched at now
func (s *TaskService) FindReadyToRun(ctx context.Context, now time.Time) ([]*models.Task, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return orchestrator.ReadyTasks(all, now), nil
}

func (s *TaskService) FindResults(ctx context.Context, id string) ([]*models.TaskResult, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.FindResultsByTaskID(ctx, id)
}

// AddDependency makes taskID depend on dependencyID. Edges that would close
// a cycle are rejected with ErrDependencyCycle and nothing is stored.
func (s *TaskService) AddDependency(ctx context.Context, taskID, dependencyID string) (*models.Task, error) {
	if taskID == dependencyID {
		return nil, fmt.Errorf("%w: %s", ErrSelfDependency, taskID)
	}

	s.depMu.Lock()
	defer s.depMu.Unlock()

	if _, err := s.store.FindByID(ctx, dependencyID); err != nil {
		return nil, err
	}

	wouldCycle, err := s.wouldCreateCycle(ctx, taskID, dependencyID)
	if err != nil {
		return nil, err
	}
	if wouldCycle {
		s.log.Warn("rejected dependency that would deadlock", "task_id", taskID, "dependency_id", dependencyID)
		return nil, fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, taskID, dependencyID)
	}

	return storage.UpdateTask(ctx, s.store, taskID, func(t *models.Task) error {
		t.AddDependency(dependencyID)
		return nil
	})
}

func (s *TaskService) RemoveDependency(ctx context.Context, taskID, dependencyID string) (*models.Task, error) {
	s.depMu.Lock()
	defer s.depMu.Unlock()

	return storage.UpdateTask(ctx, s.store, taskID, func(t *models.Task) error {
		t.RemoveDependency(dependencyID)
		return nil
	})
}

// WouldCreateDeadlock reports whether adding the edge would close a cycle
func (s *TaskService) WouldCreateDeadlock(ctx context.Context, taskID, dependencyID string) (bool, error) {
	if _, err := s.store.FindByID(ctx, taskID); err != nil {
		return false, err
	}
	return s.wouldCreateCycle(ctx, taskID, dependencyID)
}

func (s *TaskService) wouldCreateCycle(ctx context.Context, taskID, dependencyID string) (bool, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return false, err
	}
	return orchestrator.WouldCreateCycle(orchestrator.BuildGraph(all), taskID, dependencyID), nil
}

// DetectDeadlocks runs cycle detection over all stored tasks
func (s *TaskService) DetectDeadlocks(ctx context.Context) (models.DeadlockReport, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return models.DeadlockReport{}, err
	}
	return orchestrator.DetectDeadlocks(orchestrator.BuildGraph(all)), nil
}
