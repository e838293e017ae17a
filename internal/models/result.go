// internal/models/result.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskResult is the immutable outcome of one successful task execution
type TaskResult struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTaskResult creates a result stamped with the current time
func NewTaskResult(title, content string) *TaskResult {
	return &TaskResult{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Timestamp: time.Now(),
	}
}
