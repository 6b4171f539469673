package doctor

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// ActorFunc returns the authenticated user behind a request.
type ActorFunc func(r *http.Request) (models.User, bool)

type Handler struct {
	service *Service
	actor   ActorFunc
	logger  *logging.Logger
}

func NewHandler(service *Service, actor ActorFunc, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, actor: actor, logger: logger}
}

// GetSchedule handles GET /doctor/schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sched, err := h.service.Schedule(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to load schedule", "error", err, "doctor_id", user.ID)
		http.Error(w, "Failed to load schedule", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, sched)
}

// ToggleDay handles POST /doctor/schedule/{day}/toggle.
func (h *Handler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sched, err := h.service.ToggleDay(r.Context(), user, chi.URLParam(r, "day"))
	switch {
	case errors.Is(err, ErrUnknownDay):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to toggle schedule day", "error", err, "doctor_id", user.ID)
		http.Error(w, "Failed to update schedule", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, sched)
}

type onlineRequest struct {
	Online *bool `json:"online"`
}

// SetOnline handles PUT /doctor/online.
func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req onlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		http.Error(w, "online flag is required", http.StatusBadRequest)
		return
	}
	sched, err := h.service.SetOnline(r.Context(), user, *req.Online)
	if err != nil {
		h.logger.Error("failed to set online status", "error", err, "doctor_id", user.ID)
		http.Error(w, "Failed to update status", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, sched)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
