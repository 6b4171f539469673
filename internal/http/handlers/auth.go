package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/lumeskin-platform/internal/booking"
	"github.com/wolfman30/lumeskin-platform/internal/cart"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/session"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// Sessions is the subset of session.Manager the auth endpoints drive.
type Sessions interface {
	Login(ctx context.Context, req session.LoginRequest) (*session.Session, string, error)
	Signup(ctx context.Context, req session.SignupRequest) (*session.Session, string, error)
	Logout(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	sessions Sessions
	logger   *logging.Logger
}

func NewAuthHandler(sessions Sessions, logger *logging.Logger) *AuthHandler {
	if sessions == nil {
		panic("handlers: sessions cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{sessions: sessions, logger: logger}
}

// SessionResponse is returned by login, signup and GET /session.
type SessionResponse struct {
	Token     string        `json:"token,omitempty"`
	SessionID string        `json:"sessionId"`
	User      models.User   `json:"user"`
	Temporary bool          `json:"temporary"`
	Cart      cart.Snapshot `json:"cart"`
	Booking   booking.View  `json:"booking"`
}

func sessionResponse(sess *session.Session, token string) SessionResponse {
	return SessionResponse{
		Token:     token,
		SessionID: sess.ID,
		User:      sess.User,
		Temporary: sess.Temporary(),
		Cart:      sess.Cart.Snapshot(),
		Booking:   sess.Booking.View(),
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, token, err := h.sessions.Login(r.Context(), req)
	h.respond(w, sess, token, err, http.StatusOK)
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req session.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, token, err := h.sessions.Signup(r.Context(), req)
	h.respond(w, sess, token, err, http.StatusCreated)
}

func (h *AuthHandler) respond(w http.ResponseWriter, sess *session.Session, token string, err error, status int) {
	if err != nil {
		if errors.Is(err, session.ErrInvalidRequest) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to open session", "error", err)
		jsonError(w, "failed to open session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, sessionResponse(sess, token))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Logout(r.Context(), sess.ID); err != nil {
		h.logger.Error("failed to close session", "error", err, "session_id", sess.ID)
		jsonError(w, "failed to close session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /session. A session restored after a restart comes
// back with an empty cart and booking flow.
func (h *AuthHandler) Current(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess, ""))
}
