// internal/service/queue_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/storage"
)

var (
	ErrQueueNotFound    = errors.New("queue not found")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrTaskNotReady     = errors.New("task is not ready to run")
	ErrInvalidCriterion = errors.New("unknown reorder criterion")
)

// QueueService manages named in-memory task queues
type QueueService struct {
	store     storage.TaskStore
	processor *orchestrator.Processor
	log       *logging.Logger

	queues map[int64]*models.TaskQueue
	nextID int64
	mu     sync.RWMutex

	// taking the head of a queue and removing tasks must not interleave
	execMu sync.Mutex
}

func NewQueueService(store storage.TaskStore, processor *orchestrator.Processor, log *logging.Logger) *QueueService {
	return &QueueService{
		store:     store,
		processor: processor,
		log:       log.WithComponent("queues"),
		queues:    make(map[int64]*models.TaskQueue),
	}
}

func (s *QueueService) CreateQueue(name string) (*models.TaskQueue, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	q := models.NewTaskQueue(s.nextID, name)
	s.queues[q.ID] = q
	s.log.Info("queue created", "queue_id", q.ID, "name", name)
	return q, nil
}

func (s *QueueService) GetQueue(id int64) (*models.TaskQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.queues[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrQueueNotFound, id)
	}
	return q, nil
}

// ListQueues returns all queues ordered by ID
func (s *QueueService) ListQueues() []*models.TaskQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TaskQueue, 0, len(s.queues))
	for _, q := range s.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enqueue appends the task to the queue and stores it as QUEUED. A task that
// is already in the queue is left alone and false is returned.
func (s *QueueService) Enqueue(ctx context.Context, queueID int64, taskID string) (bool, error) {
	q, err := s.GetQueue(queueID)
	if err != nil {
		return false, err
	}
	if q.Contains(taskID) {
		return false, nil
	}

	task, err := storage.UpdateTask(ctx, s.store, taskID, func(t *models.Task) error {
		return t.TransitionTo(models.TaskStatusQueued)
	})
	if err != nil {
		return false, err
	}

	added, err := q.Enqueue(task)
	if err != nil {
		return false, err
	}
	if added {
		s.log.Info("task enqueued", "queue_id", queueID, "task_id", taskID, "position", q.Len())
	}
	return added, nil
}

func (s *QueueService) RemoveTask(ctx context.Context, queueID int64, taskID string) (bool, error) {
	q, err := s.GetQueue(queueID)
	if err != nil {
		return false, err
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()
	return q.RemoveByID(taskID), nil
}

func (s *QueueService) Reorder(queueID int64, criterion string) error {
	q, err := s.GetQueue(queueID)
	if err != nil {
		return err
	}
	if !q.Reorder(criterion) {
		return fmt.Errorf("%w: %q", ErrInvalidCriterion, criterion)
	}
	return nil
}

// ExecuteNext dispatches the head of the queue if it is ready to run. Heads
// that were already run outside the queue are dropped first. The head only
// leaves the queue once the worker pool has accepted it; the worker persists
// the RUNNING state.
func (s *QueueService) ExecuteNext(ctx context.Context, queueID int64) (*orchestrator.Future, error) {
	q, err := s.GetQueue(queueID)
	if err != nil {
		return nil, err
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	for {
		head := q.Peek()
		if head == nil {
			return nil, fmt.Errorf("%w: %d", ErrQueueEmpty, queueID)
		}

		current, err := s.store.FindByID(ctx, head.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.TaskStatusRunning || current.Status.IsTerminal() {
			q.RemoveByID(head.ID)
			s.log.Info("dropped task that already ran outside the queue",
				"queue_id", queueID, "task_id", head.ID, "status", current.Status)
			continue
		}

		ready, err := s.processor.IsReady(ctx, current)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotReady, head.ID)
		}

		f, err := s.processor.Dispatch(ctx, current)
		if err != nil {
			return nil, err
		}

		if _, err := q.Dequeue(); err != nil {
			s.log.Warn("dispatched task could not be dequeued", "queue_id", queueID, "task_id", head.ID, "error", err)
		}

		s.log.Info("dispatching queued task", "queue_id", queueID, "task_id", head.ID)
		return f, nil
	}
}

// ProcessAll dispatches tasks from the head of the queue while they are ready.
// It stops at the first head that is not ready or that the pool rejects.
func (s *QueueService) ProcessAll(ctx context.Context, queueID int64) ([]*orchestrator.Future, error) {
	var futures []*orchestrator.Future
	for {
		f, err := s.ExecuteNext(ctx, queueID)
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) || errors.Is(err, ErrTaskNotReady) {
				return futures, nil
			}
			return futures, err
		}
		futures = append(futures, f)
	}
}
