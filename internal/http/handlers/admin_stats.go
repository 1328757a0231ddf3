package handlers

import (
	"context"
	"net/http"

	"github.com/turnoslabs/turnosbot/internal/stats"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// StatsReader computes the dashboard summary.
type StatsReader interface {
	Summary(ctx context.Context) (*stats.Summary, error)
}

// AdminStatsHandler serves the dashboard summary.
type AdminStatsHandler struct {
	reader StatsReader
	logger *logging.Logger
}

func NewAdminStatsHandler(reader StatsReader, logger *logging.Logger) *AdminStatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminStatsHandler{reader: reader, logger: logger}
}

// Get returns the booking and queue figures for the dashboard.
// GET /admin/stats
func (h *AdminStatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reader.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		jsonError(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
