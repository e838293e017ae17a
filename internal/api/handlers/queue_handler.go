// internal/api/handlers/queue_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/go-chi/chi/v5"
)

type QueueHandler struct {
	queues *service.QueueService
}

func NewQueueHandler(queues *service.QueueService) *QueueHandler {
	return &QueueHandler{queues: queues}
}

func queueID(r *http.Request) (int64, bool) {
	id, ok, err := int64Param(chi.URLParam(r, "id"))
	return id, ok && err == nil
}

func (h *QueueHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues := h.queues.ListQueues()
	out := make([]models.QueueState, 0, len(queues))
	for _, q := range queues {
		out = append(out, q.State())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *QueueHandler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	q, err := h.queues.CreateQueue(req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q.State())
}

func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := queueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid queue id")
		return
	}

	q, err := h.queues.GetQueue(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q.State())
}

func (h *QueueHandler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	id, ok := queueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid queue id")
		return
	}

	var req struct {
		TaskID string `json:"taskId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	added, err := h.queues.Enqueue(r.Context(), id, req.TaskID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taskId": req.TaskID, "added": added})
}

func (h *QueueHandler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	id, ok := queueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid queue id")
		return
	}

	taskID := chi.URLParam(r, "taskId")
	removed, err := h.queues.RemoveTask(r.Context(), id, taskID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "task is not in the queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) ReorderQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := queueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid queue id")
		return
	}

	var req struct {
		Criterion string `json:"criterion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.queues.Reorder(id, req.Criterion); err != nil {
		writeServiceError(w, err)
		return
	}

	q, err := h.queues.GetQueue(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q.State())
}

func (h *QueueHandler) ExecuteNext(w http.ResponseWriter, r *http.Request) {
	id, ok := queueID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid queue id")
		return
	}

	if _, err := h.queues.ExecuteNext(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Task dispatched"})
}
