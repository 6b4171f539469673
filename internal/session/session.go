// Package session tracks who is logged in. Identity is never verified: login
// reuses a stored user by email or hands out a temporary identity.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/lumeskin-platform/internal/booking"
	"github.com/wolfman30/lumeskin-platform/internal/cart"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const markerPrefix = "session:"

// UserStore is the part of the store the session layer touches.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	AddUser(ctx context.Context, user models.User) error
	LoadDocument(ctx context.Context, name string, v any) (bool, error)
	SaveDocument(ctx context.Context, name string, v any) error
	DeleteDocument(ctx context.Context, name string) error
}

// Session is one logged-in client. Cart and Booking are in-memory only.
type Session struct {
	ID        string
	User      models.User
	Cart      *cart.Cart
	Booking   *booking.Flow
	CreatedAt time.Time
}

// Temporary reports whether the identity came from a login miss and was
// never stored.
func (s *Session) Temporary() bool {
	return strings.HasPrefix(s.User.ID, "temp-")
}

type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=PATIENT DOCTOR ADMIN STAFF"`
}

type SignupRequest struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=PATIENT DOCTOR ADMIN STAFF"`
}

type Manager struct {
	store    UserStore
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *logging.Logger
	validate *validator.Validate

	mu       sync.RWMutex
	sessions map[string]*Session
	// logouts counts completed logouts; Restore retries its marker read
	// when one lands while the read is in flight.
	logouts uint64
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(store UserStore, secret string, opts ...Option) *Manager {
	if store == nil {
		panic("session: user store cannot be nil")
	}
	if secret == "" {
		panic("session: signing secret cannot be empty")
	}
	m := &Manager{
		store:    store,
		secret:   []byte(secret),
		ttl:      24 * time.Hour,
		now:      time.Now,
		logger:   logging.Default(),
		validate: validator.New(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func localPart(email string) string {
	return strings.Split(email, "@")[0]
}

func (m *Manager) check(req any) error {
	if err := m.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Login reuses the first stored user with this exact email, whose stored
// role wins over the requested one. Otherwise a temporary identity with the
// requested role is created and not stored.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (*Session, string, error) {
	if err := m.check(req); err != nil {
		return nil, "", err
	}
	user, err := m.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if !isNotFound(err) {
			return nil, "", fmt.Errorf("session: login lookup: %w", err)
		}
		user = models.User{
			ID:    fmt.Sprintf("temp-%d", m.now().UnixMilli()),
			Name:  localPart(req.Email),
			Role:  models.Role(req.Role),
			Email: req.Email,
		}
	}
	return m.open(ctx, user)
}

// Signup stores a new user (duplicates allowed) and logs it in.
func (m *Manager) Signup(ctx context.Context, req SignupRequest) (*Session, string, error) {
	if err := m.check(req); err != nil {
		return nil, "", err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = localPart(req.Email)
	}
	user := models.User{
		ID:    models.NewShortID(),
		Name:  name,
		Role:  models.Role(req.Role),
		Email: req.Email,
	}
	if err := m.store.AddUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("session: signup: %w", err)
	}
	return m.open(ctx, user)
}

func (m *Manager) open(ctx context.Context, user models.User) (*Session, string, error) {
	sess := m.newSession(uuid.NewString(), user)
	if err := m.store.SaveDocument(ctx, markerPrefix+sess.ID, user); err != nil {
		return nil, "", fmt.Errorf("session: write marker: %w", err)
	}
	token, err := m.sign(sess)
	if err != nil {
		return nil, "", err
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	m.logger.Info("session opened", "session_id", sess.ID, "user_id", user.ID, "role", user.Role)
	return sess, token, nil
}

func (m *Manager) newSession(id string, user models.User) *Session {
	return &Session{
		ID:        id,
		User:      user,
		Cart:      cart.New(),
		Booking:   booking.NewFlow(),
		CreatedAt: m.now(),
	}
}

// Logout drops the identity, cart and booking flow and deletes the marker.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteDocument(ctx, markerPrefix+sessionID); err != nil {
		return fmt.Errorf("session: delete marker: %w", err)
	}
	m.mu.Lock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.Cart.Clear()
		sess.Booking.Back()
		delete(m.sessions, sessionID)
	}
	m.logouts++
	m.mu.Unlock()
	m.logger.Info("session closed", "session_id", sessionID)
	return nil
}

// Restore rebuilds a session from its marker after a restart. The cart and
// booking flow start empty.
func (m *Manager) Restore(ctx context.Context, sessionID string) (*Session, error) {
	for {
		m.mu.RLock()
		sess, ok := m.sessions[sessionID]
		seen := m.logouts
		m.mu.RUnlock()
		if ok {
			return sess, nil
		}

		var user models.User
		found, err := m.store.LoadDocument(ctx, markerPrefix+sessionID, &user)
		if err != nil {
			return nil, fmt.Errorf("session: read marker: %w", err)
		}
		if !found {
			return nil, ErrSessionNotFound
		}

		m.mu.Lock()
		if existing, ok := m.sessions[sessionID]; ok {
			m.mu.Unlock()
			return existing, nil
		}
		if m.logouts != seen {
			m.mu.Unlock()
			continue
		}
		sess = m.newSession(sessionID, user)
		m.sessions[sessionID] = sess
		m.mu.Unlock()
		m.logger.Info("session restored", "session_id", sessionID, "user_id", user.ID)
		return sess, nil
	}
}

// Resolve validates a bearer token and returns its session.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return m.Restore(ctx, claims.Subject)
}

func (m *Manager) sign(sess *Session) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:  sess.ID,
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   "lumeskin",
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return token, nil
}

// Active reports the number of sessions held in memory.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
