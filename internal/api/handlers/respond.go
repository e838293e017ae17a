// internal/api/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/fawad-mazhar/taskflow/internal/worker"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrTaskNotFound),
		errors.Is(err, storage.ErrNotificationNotFound),
		errors.Is(err, service.ErrQueueNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSelfDependency),
		errors.Is(err, service.ErrInvalidTask),
		errors.Is(err, service.ErrInvalidCriterion):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDependencyCycle),
		errors.Is(err, service.ErrTaskNotReady),
		errors.Is(err, service.ErrQueueEmpty),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrExecutionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, worker.ErrQueueFull),
		errors.Is(err, worker.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// int64Param parses an optional integer query or path value
func int64Param(raw string) (int64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
