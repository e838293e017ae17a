// internal/models/task.go
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusCreated TaskStatus = "CREATED"
	TaskStatusQueued  TaskStatus = "QUEUED"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusDone    TaskStatus = "DONE"
	TaskStatusFailed  TaskStatus = "FAILED"
)

// ErrInvalidTransition is returned when a status change is not allowed by the task state machine.
var ErrInvalidTransition = errors.New("invalid task status transition")

// transitions lists the allowed forward edges. Re-entering QUEUED or RUNNING is a no-op.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusCreated: {TaskStatusQueued, TaskStatusRunning},
	TaskStatusQueued:  {TaskStatusQueued, TaskStatusRunning},
	TaskStatusRunning: {TaskStatusRunning, TaskStatusDone, TaskStatusFailed},
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusQueued, TaskStatusRunning, TaskStatusDone, TaskStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is a unit of work with dependencies on other tasks
type Task struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	DueDate        *time.Time  `json:"dueDate,omitempty"`
	ScheduledTime  *time.Time  `json:"scheduledTime,omitempty"`
	AssignedUserID int64       `json:"assignedUserId"`
	TaskType       string      `json:"taskType,omitempty"`
	Status         TaskStatus  `json:"status"`
	Completed      bool        `json:"completed"`
	Dependencies   []string    `json:"dependencies"`
	Result         *TaskResult `json:"result,omitempty"`
	LastError      string      `json:"lastError,omitempty"`
	Version        int64       `json:"version"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// NewTask creates a task in the CREATED state
func NewTask(title, description string, dueDate *time.Time, assignedUserID int64) *Task {
	now := time.Now()
	return &Task{
		ID:             uuid.New().String(),
		Title:          title,
		Description:    description,
		DueDate:        copyTime(dueDate),
		AssignedUserID: assignedUserID,
		Status:         TaskStatusCreated,
		Dependencies:   make([]string, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewRunnableTask creates a task bound to a registered task type.
func NewRunnableTask(title, description string, dueDate *time.Time, assignedUserID int64, taskType string, scheduledTime *time.Time) *Task {
	t := NewTask(title, description, dueDate, assignedUserID)
	t.TaskType = taskType
	t.ScheduledTime = copyTime(scheduledTime)
	return t
}

// TransitionTo moves the task to next if the state machine allows it.
func (t *Task) TransitionTo(next TaskStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	if t.Status != next {
		t.Status = next
		t.touch()
	}
	return nil
}

// Complete marks the task DONE. It is the only way to set Completed.
func (t *Task) Complete() error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskStatusDone)
	}
	t.Status = TaskStatusDone
	t.Completed = true
	t.LastError = ""
	t.touch()
	return nil
}

// Fail moves a running task to FAILED and records the cause.
func (t *Task) Fail(cause error) error {
	if err := t.TransitionTo(TaskStatusFailed); err != nil {
		return err
	}
	if cause != nil {
		t.LastError = cause.Error()
	}
	return nil
}

// UpdateDetails replaces the descriptive fields of the task.
func (t *Task) UpdateDetails(title, description string, dueDate *time.Time) {
	t.Title = title
	t.Description = description
	t.DueDate = copyTime(dueDate)
	t.touch()
}

// AddDependency records that t depends on id. Empty IDs, self references
// and duplicates are ignored and reported as false.
func (t *Task) AddDependency(id string) bool {
	if id == "" || id == t.ID || t.DependsOn(id) {
		return false
	}
	t.Dependencies = append(t.Dependencies, id)
	t.touch()
	return true
}

// RemoveDependency drops the edge to id.
func (t *Task) RemoveDependency(id string) bool {
	for i, dep := range t.Dependencies {
		if dep == id {
			t.Dependencies = append(t.Dependencies[:i], t.Dependencies[i+1:]...)
			t.touch()
			return true
		}
	}
	return false
}

// DependsOn reports whether id is a direct dependency of t.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// IsReadyToRun checks whether the task can be dispatched at now.
// isDone reports whether a dependency is completed; unknown dependencies must report false.
func (t *Task) IsReadyToRun(now time.Time, isDone func(id string) bool) bool {
	if t.Status != TaskStatusCreated && t.Status != TaskStatusQueued {
		return false
	}
	if t.TaskType == "" {
		return false
	}
	if t.ScheduledTime != nil && t.ScheduledTime.After(now) {
		return false
	}
	for _, dep := range t.Dependencies {
		if isDone == nil || !isDone(dep) {
			return false
		}
	}
	return true
}

// IsOverdue reports whether the due date has passed on an unfinished task.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.DueDate = copyTime(t.DueDate)
	c.ScheduledTime = copyTime(t.ScheduledTime)
	c.Dependencies = append(make([]string, 0, len(t.Dependencies)), t.Dependencies...)
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}

func (t *Task) touch() {
	t.UpdatedAt = time.Now()
}

func copyTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}
