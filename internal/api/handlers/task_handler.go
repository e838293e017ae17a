// internal/api/handlers/task_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	tasks     *service.TaskService
	processor *orchestrator.Processor
	tracker   *progress.Tracker
}

func NewTaskHandler(tasks *service.TaskService, processor *orchestrator.Processor, tracker *progress.Tracker) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		processor: processor,
		tracker:   tracker,
	}
}

type taskRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"dueDate"`
	AssignedUserID int64      `json:"assignedUserId"`
	TaskType       string     `json:"taskType"`
	ScheduledTime  *time.Time `json:"scheduledTime"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		task *models.Task
		err  error
	)
	if req.TaskType != "" {
		task, err = h.tasks.CreateRunnableTask(r.Context(), req.Title, req.Description, req.DueDate, req.AssignedUserID, req.TaskType, req.ScheduledTime)
	} else {
		task, err = h.tasks.CreateTask(r.Context(), req.Title, req.Description, req.DueDate, req.AssignedUserID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, hasUser, err := int64Param(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId")
		return
	}

	status := models.TaskStatus(r.URL.Query().Get("status"))
	hasStatus := status != ""
	if hasStatus && !status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	var tasks []*models.Task
	switch {
	case hasUser && hasStatus:
		tasks, err = h.tasks.FindByUserIDAndStatus(r.Context(), userID, status)
	case hasUser:
		tasks, err = h.tasks.FindByUserID(r.Context(), userID)
	case hasStatus:
		tasks, err = h.tasks.FindByStatus(r.Context(), status)
	default:
		tasks, err = h.tasks.FindAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) ReadyTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.FindReadyToRun(r.Context(), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := h.tasks.UpdateTask(r.Context(), chi.URLParam(r, "id"), req.Title, req.Description, req.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.CompleteTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ExecuteTask runs a task in the background, or waits for it with ?sync=true
func (h *TaskHandler) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if _, err := h.tasks.FindByID(r.Context(), taskID); err != nil {
		writeServiceError(w, err)
		return
	}

	sync, _ := strconv.ParseBool(r.URL.Query().Get("sync"))
	if sync {
		var timeout time.Duration
		if raw := r.URL.Query().Get("timeout"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid timeout")
				return
			}
			timeout = d
		}

		task, err := h.processor.ExecuteSync(r.Context(), taskID, timeout)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if task == nil {
			writeError(w, http.StatusConflict, "task is not ready to run")
			return
		}
		writeJSON(w, http.StatusOK, task)
		return
	}

	// the request context ends with the response; the run does not depend on it
	f := h.processor.ExecuteAsync(r.Context(), taskID)
	select {
	case <-f.Done():
		task, err := f.Wait(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if task == nil {
			writeError(w, http.StatusConflict, "task is not ready to run")
			return
		}
		writeJSON(w, http.StatusOK, task)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message": "Task submitted for execution",
			"taskId":  taskID,
		})
	}
}

type dependencyRequest struct {
	DependencyID string `json:"dependencyId"`
}

func (h *TaskHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	var req dependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DependencyID == "" {
		writeError(w, http.StatusBadRequest, "dependencyId is required")
		return
	}

	task, err := h.tasks.AddDependency(r.Context(), chi.URLParam(r, "id"), req.DependencyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.RemoveDependency(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "depId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.tasks.FindResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *TaskHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.tracker.Snapshot(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no progress recorded for task")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
