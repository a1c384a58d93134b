package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/domain"
)

// NotificationService lists and acknowledges notifications.
type NotificationService interface {
	List(ctx context.Context, userID int64, limit, offset int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error)
}

// NotificationHandler handles the notification endpoints.
type NotificationHandler struct {
	notes NotificationService
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notes NotificationService) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	notes, err := h.notes.List(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]NotificationResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, notificationToResponse(n))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := getPathID(r, "id")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid notification ID", err)
		return
	}

	n, err := h.notes.MarkRead(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, notificationToResponse(n))
}
