package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// ActorFunc returns the authenticated user behind a request.
type ActorFunc func(r *http.Request) (models.User, bool)

type analysisRequest struct {
	Image string `json:"image" validate:"required"`
}

type chatRequest struct {
	Message string     `json:"message" validate:"required,max=4000"`
	History []ChatTurn `json:"history" validate:"omitempty,dive"`
}

// Handler exposes task submission and polling over HTTP.
type Handler struct {
	publisher *Publisher
	actor     ActorFunc
	validate  *validator.Validate
	logger    *logging.Logger
}

func NewHandler(publisher *Publisher, actor ActorFunc, logger *logging.Logger) *Handler {
	if publisher == nil {
		panic("assistant: publisher cannot be nil")
	}
	if actor == nil {
		panic("assistant: actor func cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{publisher: publisher, actor: actor, validate: validator.New(), logger: logger}
}

// Analyze handles POST /assistant/analysis with either a multipart "image"
// file or a JSON body carrying base64 image data.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	img, err := h.readImage(w, r)
	if err != nil {
		h.logger.Warn("rejected analysis upload", "error", err, "user_id", user.ID)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := h.publisher.SubmitAnalysis(r.Context(), user.ID, img)
	if err != nil {
		h.logger.Error("failed to submit analysis", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to submit analysis", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, task)
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) (Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes*2)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			return Image{}, errors.New("missing image file")
		}
		defer file.Close()
		raw, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
		if err != nil {
			return Image{}, err
		}
		if len(raw) > MaxImageBytes {
			return Image{}, errors.New("image too large")
		}
		return DecodeImage(raw)
	}

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Image{}, errors.New("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return Image{}, errors.New("image is required")
	}
	return DecodeBase64Image(req.Image)
}

// Chat handles POST /assistant/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	task, err := h.publisher.SubmitChat(r.Context(), user.ID, req.Message)
	if err != nil {
		h.logger.Error("failed to submit chat", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to submit chat", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, task)
}

// GetTask handles GET /assistant/tasks/{taskID}. Tasks of other users are
// reported as missing.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	task, err := h.publisher.Task(r.Context(), chi.URLParam(r, "taskID"))
	if errors.Is(err, ErrTaskNotFound) || (err == nil && task.OwnerID != user.ID) {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load task", "error", err)
		http.Error(w, "Failed to load task", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
