// internal/api/handlers/notification_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/go-chi/chi/v5"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, hasUser, err := int64Param(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId")
		return
	}

	var notifications []*models.Notification
	rawRead := r.URL.Query().Get("read")
	switch {
	case hasUser && rawRead != "":
		read, err := strconv.ParseBool(rawRead)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid read flag")
			return
		}
		notifications, err = h.notifications.FindByUserIDAndRead(r.Context(), userID, read)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	case hasUser:
		notifications, err = h.notifications.FindByUserID(r.Context(), userID)
	default:
		notifications, err = h.notifications.FindAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, ok, err := int64Param(chi.URLParam(r, "id"))
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	userID, ok, err := int64Param(r.URL.Query().Get("userId"))
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	n, err := h.notifications.MarkAsRead(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
