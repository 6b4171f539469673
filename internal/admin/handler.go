package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// ActorFunc returns the authenticated user behind a request.
type ActorFunc func(r *http.Request) (models.User, bool)

type priceRequest struct {
	Price *float64 `json:"price" validate:"required,gte=0"`
}

type Handler struct {
	service  *Service
	actor    ActorFunc
	validate *validator.Validate
	logger   *logging.Logger
}

func NewHandler(service *Service, actor ActorFunc, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, actor: actor, validate: validator.New(), logger: logger}
}

// GetStats handles GET /admin/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

// UpdateProduct handles PATCH /admin/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "price must be a non-negative number", http.StatusBadRequest)
		return
	}

	product, err := h.service.SetPrice(r.Context(), actor, chi.URLParam(r, "id"), *req.Price)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to update product", "error", err)
		http.Error(w, "Failed to update product", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// ListAudit handles GET /admin/audit?action=a,b&actor=id&since=RFC3339&limit=n.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{ActorID: q.Get("actor"), Limit: 100}
	if raw := strings.TrimSpace(q.Get("action")); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			filter.Actions = append(filter.Actions, audit.Action(strings.TrimSpace(a)))
		}
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	evts, err := h.service.AuditTrail(r.Context(), filter)
	switch {
	case errors.Is(err, ErrAuditUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Error("failed to query audit trail", "error", err)
		http.Error(w, "Failed to query audit trail", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, evts)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
