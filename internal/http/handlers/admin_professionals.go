package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/turnoslabs/turnosbot/internal/professionals"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// ProfessionalStore is the slice of the professionals repository the admin
// API uses.
type ProfessionalStore interface {
	List(ctx context.Context) ([]professionals.Professional, error)
	Get(ctx context.Context, id uuid.UUID) (*professionals.Professional, error)
	Create(ctx context.Context, p professionals.Professional) (*professionals.Professional, error)
	Update(ctx context.Context, p professionals.Professional) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AdminProfessionalsHandler serves CRUD for the professionals roster.
type AdminProfessionalsHandler struct {
	store    ProfessionalStore
	validate *validator.Validate
	logger   *logging.Logger
}

func NewAdminProfessionalsHandler(store ProfessionalStore, logger *logging.Logger) *AdminProfessionalsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminProfessionalsHandler{store: store, validate: validator.New(), logger: logger}
}

type professionalDTO struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Active   bool   `json:"active"`
	Position int    `json:"position" validate:"min=0"`
}

// List returns every professional, including inactive ones.
// GET /admin/professionals
func (h *AdminProfessionalsHandler) List(w http.ResponseWriter, r *http.Request) {
	pros, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list professionals", "error", err)
		jsonError(w, "failed to list professionals", http.StatusInternalServerError)
		return
	}
	if pros == nil {
		pros = []professionals.Professional{}
	}
	writeJSON(w, http.StatusOK, pros)
}

// Create adds a professional to the roster.
// POST /admin/professionals
func (h *AdminProfessionalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), professionals.Professional{
		Name:     dto.Name,
		Color:    dto.Color,
		Active:   dto.Active,
		Position: dto.Position,
	})
	if err != nil {
		h.logger.Error("failed to create professional", "error", err)
		jsonError(w, "failed to create professional", http.StatusInternalServerError)
		return
	}
	h.logger.Info("professional created", "professional_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// Update rewrites a professional's fields. Deactivating removes them from
// booking menus without touching existing appointments.
// PUT /admin/professionals/{id}
func (h *AdminProfessionalsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid professional id", http.StatusBadRequest)
		return
	}
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}
	p := professionals.Professional{
		ID:       id,
		Name:     dto.Name,
		Color:    dto.Color,
		Active:   dto.Active,
		Position: dto.Position,
	}
	err = h.store.Update(r.Context(), p)
	if errors.Is(err, professionals.ErrNotFound) {
		jsonError(w, "professional not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to update professional", "error", err, "professional_id", id)
		jsonError(w, "failed to update professional", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete removes a professional. Their appointments survive with no assigned
// professional.
// DELETE /admin/professionals/{id}
func (h *AdminProfessionalsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid professional id", http.StatusBadRequest)
		return
	}
	err = h.store.Delete(r.Context(), id)
	if errors.Is(err, professionals.ErrNotFound) {
		jsonError(w, "professional not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete professional", "error", err, "professional_id", id)
		jsonError(w, "failed to delete professional", http.StatusInternalServerError)
		return
	}
	h.logger.Info("professional deleted", "professional_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *AdminProfessionalsHandler) decode(w http.ResponseWriter, r *http.Request) (professionalDTO, bool) {
	var dto professionalDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return dto, false
	}
	if err := h.validate.Struct(dto); err != nil {
		jsonError(w, "invalid professional: "+err.Error(), http.StatusBadRequest)
		return dto, false
	}
	return dto, true
}
