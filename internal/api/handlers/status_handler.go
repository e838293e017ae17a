// internal/api/handlers/status_handler.go
package handlers

import (
	"net/http"

	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/fawad-mazhar/taskflow/internal/worker"
)

type StatusHandler struct {
	tasks     *service.TaskService
	processor *orchestrator.Processor
	registry  *worker.Registry
	tracker   *progress.Tracker
}

func NewStatusHandler(tasks *service.TaskService, processor *orchestrator.Processor, registry *worker.Registry, tracker *progress.Tracker) *StatusHandler {
	return &StatusHandler{
		tasks:     tasks,
		processor: processor,
		registry:  registry,
		tracker:   tracker,
	}
}

func (h *StatusHandler) GetPoolStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"processorId": h.processor.ID(),
		"pool":        h.processor.PoolStats(),
		"inFlight":    h.processor.InFlight(),
	})
}

func (h *StatusHandler) GetDeadlocks(w http.ResponseWriter, r *http.Request) {
	report, err := h.tasks.DetectDeadlocks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *StatusHandler) GetTaskTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Types())
}

func (h *StatusHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshots())
}
