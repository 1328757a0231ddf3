package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/turnoslabs/turnosbot/internal/notifications"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

const defaultNotificationLimit = 100

// NotificationReader is the slice of the notification queue the admin API
// uses.
type NotificationReader interface {
	List(ctx context.Context, onlyPending bool, limit int) ([]notifications.Entry, error)
	CountPending(ctx context.Context) (int, error)
}

// AdminNotificationsHandler exposes the outbound notification queue for
// inspection.
type AdminNotificationsHandler struct {
	queue  NotificationReader
	logger *logging.Logger
}

func NewAdminNotificationsHandler(queue NotificationReader, logger *logging.Logger) *AdminNotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminNotificationsHandler{queue: queue, logger: logger}
}

// List returns queued notifications, newest first.
// GET /admin/notifications?pending=true&limit=50
func (h *AdminNotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyPending := r.URL.Query().Get("pending") == "true"
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.queue.List(r.Context(), onlyPending, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err)
		jsonError(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []notifications.Entry{}
	}
	pending, err := h.queue.CountPending(r.Context())
	if err != nil {
		h.logger.Error("failed to count pending notifications", "error", err)
		jsonError(w, "failed to count pending notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": entries,
		"pending":       pending,
	})
}
