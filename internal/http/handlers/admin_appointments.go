package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turnoslabs/turnosbot/internal/appointments"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// BookingAdmin is the slice of the appointments service the admin API uses.
type BookingAdmin interface {
	ListByDate(ctx context.Context, date string) ([]appointments.Appointment, error)
	Week(ctx context.Context) ([]appointments.Appointment, error)
	AdminDelete(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	AvailableTimes(ctx context.Context, date string, professionalID *uuid.UUID) ([]string, error)
}

// AdminAppointmentsHandler serves appointment listings and deletion for the
// admin panel.
type AdminAppointmentsHandler struct {
	svc    BookingAdmin
	logger *logging.Logger
}

func NewAdminAppointmentsHandler(svc BookingAdmin, logger *logging.Logger) *AdminAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{svc: svc, logger: logger}
}

// List returns the appointments on one date.
// GET /admin/appointments?date=YYYY-MM-DD
func (h *AdminAppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if !validDate(date) {
		jsonError(w, "invalid or missing date", http.StatusBadRequest)
		return
	}
	appts, err := h.svc.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "date", date)
		jsonError(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

// Week returns the appointments for the seven days starting today.
// GET /admin/week
func (h *AdminAppointmentsHandler) Week(w http.ResponseWriter, r *http.Request) {
	appts, err := h.svc.Week(r.Context())
	if err != nil {
		h.logger.Error("failed to list week", "error", err)
		jsonError(w, "failed to list week", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

// Delete removes an appointment and queues a cancellation notice to the
// customer.
// DELETE /admin/appointments/{id}
func (h *AdminAppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.AdminDelete(r.Context(), id)
	if errors.Is(err, appointments.ErrNotFound) {
		jsonError(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete appointment", "error", err, "appointment_id", id)
		jsonError(w, "failed to delete appointment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Availability returns the bookable times on a date, optionally for one
// professional.
// GET /admin/availability?date=YYYY-MM-DD&professional_id=
func (h *AdminAppointmentsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if !validDate(date) {
		jsonError(w, "invalid or missing date", http.StatusBadRequest)
		return
	}
	var professionalID *uuid.UUID
	if raw := r.URL.Query().Get("professional_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			jsonError(w, "invalid professional_id", http.StatusBadRequest)
			return
		}
		professionalID = &id
	}
	times, err := h.svc.AvailableTimes(r.Context(), date, professionalID)
	if err != nil {
		h.logger.Error("failed to compute availability", "error", err, "date", date)
		jsonError(w, "failed to compute availability", http.StatusInternalServerError)
		return
	}
	if times == nil {
		times = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "times": times})
}
