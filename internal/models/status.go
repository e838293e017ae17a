// internal/models/status.go
package models

import (
	"time"
)

// StatusMessage represents a status update published for the scheduler or a task
type StatusMessage struct {
	Type      string      `json:"type"`      // "scheduler" or "task"
	ID        string      `json:"id"`        // scheduler instance id or task id
	Status    string      `json:"status"`    // current status of the entity
	Timestamp time.Time   `json:"timestamp"` // when the status was updated
	Metadata  interface{} `json:"metadata"`  // additional entity-specific information
}

type SchedulerEventType string

const (
	SchedulerStarted  SchedulerEventType = "STARTED"
	SchedulerStopping SchedulerEventType = "STOPPING"
	SchedulerStopped  SchedulerEventType = "STOPPED"
	SchedulerHealthy  SchedulerEventType = "HEALTHY"
)

// PoolStats reports the worker pool at a point in time
type PoolStats struct {
	PoolSize       int   `json:"poolSize"`
	ActiveWorkers  int   `json:"activeWorkers"`
	QueuedTasks    int   `json:"queuedTasks"`
	QueueCapacity  int   `json:"queueCapacity"`
	SubmittedTasks int64 `json:"submittedTasks"`
	CompletedTasks int64 `json:"completedTasks"`
	RejectedTasks  int64 `json:"rejectedTasks"`
}

// SchedulerStatus is the payload of scheduler status messages
type SchedulerStatus struct {
	ID        string             `json:"id"`
	Event     SchedulerEventType `json:"event"`
	Timestamp time.Time          `json:"timestamp"`
	Pool      PoolStats          `json:"pool"`
	InFlight  int                `json:"inFlight"`
}

// DeadlockReport lists the tasks taking part in dependency cycles
type DeadlockReport struct {
	HasDeadlock  bool       `json:"hasDeadlock"`
	Participants []string   `json:"participants"`
	Cycles       [][]string `json:"cycles"`
}
