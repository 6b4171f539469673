package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/lumeskin-platform/internal/booking"
	"github.com/wolfman30/lumeskin-platform/internal/cart"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/session"
)

type stubResolver struct {
	sessions map[string]*session.Session
	err      error
}

func (s stubResolver) Resolve(_ context.Context, token string) (*session.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[token]
	if !ok {
		return nil, session.ErrInvalidToken
	}
	return sess, nil
}

func staffResolver() stubResolver {
	return stubResolver{sessions: map[string]*session.Session{
		"good": {ID: "s1", User: models.User{ID: "u1", Role: models.RoleStaff}, Cart: cart.New(), Booking: booking.NewFlow()},
	}}
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		resolver stubResolver
		want     int
	}{
		{name: "missing header", header: "", resolver: staffResolver(), want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", resolver: staffResolver(), want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", resolver: staffResolver(), want: http.StatusUnauthorized},
		{name: "backend failure", header: "Bearer good", resolver: stubResolver{err: errors.New("redis down")}, want: http.StatusInternalServerError},
		{name: "valid", header: "Bearer good", resolver: staffResolver(), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser models.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = Actor(r)
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticate(tt.resolver, nil)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "u1", gotUser.ID)
			}
		})
	}
}

func TestAuthenticate_WebsocketQueryToken(t *testing.T) {
	h := Authenticate(staffResolver(), nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/staff/appointments/feed?token=good", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/staff/appointments?token=good", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query tokens are only read on upgrades")
}

func TestRequireRole(t *testing.T) {
	h := Authenticate(staffResolver(), nil)(RequireRole(models.RoleStaff, models.RoleAdmin)(okHandler(nil)))
	req := httptest.NewRequest(http.MethodGet, "/staff/appointments", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = Authenticate(staffResolver(), nil)(RequireRole(models.RolePatient)(okHandler(nil)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	RequireRole(models.RoleStaff)(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorWithoutSession(t *testing.T) {
	_, ok := Actor(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
