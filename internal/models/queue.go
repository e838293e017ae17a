// internal/models/queue.go
package models

import (
	"sort"
	"sync"
	"time"
)

// Reorder criteria understood by TaskQueue.Reorder
const (
	OrderByDueDate       = "dueDate"
	OrderByScheduledTime = "scheduledTime"
)

// TaskQueue is a named FIFO of tasks. It is safe for concurrent use.
type TaskQueue struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	tasks []*Task
	mu    sync.RWMutex
}

// QueueState is a point-in-time view of a queue
type QueueState struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Tasks     []*Task   `json:"tasks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTaskQueue creates an empty queue
func NewTaskQueue(id int64, name string) *TaskQueue {
	now := time.Now()
	return &TaskQueue{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		tasks:     make([]*Task, 0),
	}
}

// Enqueue appends task and moves it to QUEUED. A task already present is
// left where it is and false is returned.
func (q *TaskQueue) Enqueue(task *Task) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(task.ID) >= 0 {
		return false, nil
	}
	if err := task.TransitionTo(TaskStatusQueued); err != nil {
		return false, err
	}

	q.tasks = append(q.tasks, task)
	q.UpdatedAt = time.Now()
	return true, nil
}

// Dequeue removes the head and moves it to RUNNING. Returns nil when empty.
func (q *TaskQueue) Dequeue() (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, nil
	}

	head := q.tasks[0]
	if err := head.TransitionTo(TaskStatusRunning); err != nil {
		return nil, err
	}

	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.UpdatedAt = time.Now()
	return head, nil
}

// Peek returns the head without removing it
func (q *TaskQueue) Peek() *Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}

// RemoveByID drops the task with the given ID, keeping the order of the rest.
func (q *TaskQueue) RemoveByID(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(id)
	if idx < 0 {
		return false
	}

	q.tasks = append(q.tasks[:idx], q.tasks[idx+1:]...)
	q.UpdatedAt = time.Now()
	return true
}

// Reorder stable-sorts the queue by criterion. Unknown criteria leave the queue untouched.
func (q *TaskQueue) Reorder(criterion string) bool {
	var key func(*Task) *time.Time
	switch criterion {
	case OrderByDueDate:
		key = func(t *Task) *time.Time { return t.DueDate }
	case OrderByScheduledTime:
		key = func(t *Task) *time.Time { return t.ScheduledTime }
	default:
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	sort.SliceStable(q.tasks, func(i, j int) bool {
		a, b := key(q.tasks[i]), key(q.tasks[j])
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	q.UpdatedAt = time.Now()
	return true
}

// Contains reports whether a task with id is queued here
func (q *TaskQueue) Contains(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexOf(id) >= 0
}

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// Tasks returns the queued tasks in order
func (q *TaskQueue) Tasks() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// State returns a snapshot with cloned tasks
func (q *TaskQueue) State() QueueState {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tasks := make([]*Task, len(q.tasks))
	for i, t := range q.tasks {
		tasks[i] = t.Clone()
	}

	return QueueState{
		ID:        q.ID,
		Name:      q.Name,
		Tasks:     tasks,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

func (q *TaskQueue) indexOf(id string) int {
	for i, t := range q.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
