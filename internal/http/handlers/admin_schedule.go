package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/turnoslabs/turnosbot/internal/availability"
	"github.com/turnoslabs/turnosbot/internal/schedule"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// ScheduleStore is the slice of the schedule store the admin API uses.
type ScheduleStore interface {
	GetDocument(ctx context.Context) (*schedule.Document, error)
	SaveDocument(ctx context.Context, doc *schedule.Document) error
	BlockedDates(ctx context.Context, today time.Time) (map[string]struct{}, error)
}

// DayBlocker blocks and reopens dates, notifying affected customers.
type DayBlocker interface {
	BlockDate(ctx context.Context, date string) (int, error)
	UnblockDate(ctx context.Context, date string) error
}

// AdminScheduleHandler serves the weekly schedule document and the
// blocked-date set.
type AdminScheduleHandler struct {
	store    ScheduleStore
	blocker  DayBlocker
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
}

func NewAdminScheduleHandler(store ScheduleStore, blocker DayBlocker, logger *logging.Logger) *AdminScheduleHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminScheduleHandler{
		store:    store,
		blocker:  blocker,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

type timeRangeDTO struct {
	StartHour       int `json:"hora_inicio" validate:"min=0,max=23"`
	EndHour         int `json:"hora_fin" validate:"min=0,max=24,gtfield=StartHour"`
	IntervalMinutes int `json:"intervalo" validate:"min=5,max=120"`
}

type dayScheduleDTO struct {
	Morning   timeRangeDTO `json:"manana" validate:"required"`
	Afternoon timeRangeDTO `json:"tarde" validate:"required"`
}

type blockDateDTO struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// Get returns the full schedule document.
// GET /admin/schedule
func (h *AdminScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context())
	if err != nil {
		h.logger.Error("failed to load schedule", "error", err)
		jsonError(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateDay replaces the schedule for one weekday.
// PUT /admin/schedule/{day} where {day} is the Spanish weekday name.
func (h *AdminScheduleHandler) UpdateDay(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if !slices.Contains(schedule.DayNames, day) {
		jsonError(w, "unknown day", http.StatusBadRequest)
		return
	}

	var dto dayScheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		jsonError(w, "invalid schedule: "+err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.store.GetDocument(r.Context())
	if err != nil {
		h.logger.Error("failed to load schedule", "error", err)
		jsonError(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	doc.ByDay[day] = availability.DaySchedule{
		Morning:   availability.TimeRange(dto.Morning),
		Afternoon: availability.TimeRange(dto.Afternoon),
	}
	if err := h.store.SaveDocument(r.Context(), doc); err != nil {
		h.logger.Error("failed to save schedule", "error", err, "day", day)
		jsonError(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	h.logger.Info("schedule day updated", "day", day)
	writeJSON(w, http.StatusOK, doc.ByDay[day])
}

// ListBlocked returns every blocked date, including auto-blocked Sundays.
// GET /admin/blocked-dates
func (h *AdminScheduleHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.store.BlockedDates(r.Context(), h.now())
	if err != nil {
		h.logger.Error("failed to list blocked dates", "error", err)
		jsonError(w, "failed to list blocked dates", http.StatusInternalServerError)
		return
	}
	dates := make([]string, 0, len(blocked))
	for date := range blocked {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	writeJSON(w, http.StatusOK, map[string]any{"blocked_dates": dates})
}

// Block closes a date, cancelling its appointments and queueing a notice to
// each affected customer.
// POST /admin/blocked-dates
func (h *AdminScheduleHandler) Block(w http.ResponseWriter, r *http.Request) {
	var dto blockDateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		jsonError(w, "invalid date", http.StatusBadRequest)
		return
	}
	notified, err := h.blocker.BlockDate(r.Context(), dto.Date)
	if err != nil {
		h.logger.Error("failed to block date", "error", err, "date", dto.Date)
		jsonError(w, "failed to block date", http.StatusInternalServerError)
		return
	}
	h.logger.Info("date blocked", "date", dto.Date, "customers_notified", notified)
	writeJSON(w, http.StatusOK, map[string]any{"date": dto.Date, "customers_notified": notified})
}

// Unblock reopens a date. Sundays reappear as blocked on the next read.
// DELETE /admin/blocked-dates/{date}
func (h *AdminScheduleHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		jsonError(w, "invalid date", http.StatusBadRequest)
		return
	}
	if err := h.blocker.UnblockDate(r.Context(), date); err != nil {
		h.logger.Error("failed to unblock date", "error", err, "date", date)
		jsonError(w, "failed to unblock date", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "blocked": false})
}
