package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/booking"
	"github.com/wolfman30/lumeskin-platform/internal/cart"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/notify"
	"github.com/wolfman30/lumeskin-platform/internal/queue"
	"github.com/wolfman30/lumeskin-platform/internal/session"
	"github.com/wolfman30/lumeskin-platform/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(kv.NewMemoryBackend(), store.WithSeedProducts(catalog.SeedProducts()))
	require.NoError(t, st.Init(context.Background()))
	return st
}

func testSession(u models.User) *session.Session {
	return &session.Session{ID: "sess-" + u.ID, User: u, Cart: cart.New(), Booking: booking.NewFlow()}
}

func doRequest(t *testing.T, h http.Handler, sess *session.Session, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req = req.WithContext(session.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "oops", decode[map[string]string](t, rec)["error"])
}

func TestAuthHandler_LoginSignupLogout(t *testing.T) {
	st := newTestStore(t)
	h := NewAuthHandler(session.NewManager(st, "test-secret"), nil)

	rec := doRequest(t, http.HandlerFunc(h.Login), nil, http.MethodPost, "/auth/login",
		map[string]string{"email": store.SeedAdmin.Email, "role": "PATIENT"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.User.Role, "stored role wins")
	assert.False(t, resp.Temporary)

	rec = doRequest(t, http.HandlerFunc(h.Login), nil, http.MethodPost, "/auth/login",
		map[string]string{"email": "walk.in@example.com", "role": "PATIENT"})
	require.Equal(t, http.StatusOK, rec.Code)
	temp := decode[SessionResponse](t, rec)
	assert.True(t, temp.Temporary)
	assert.Equal(t, "walk.in", temp.User.Name)

	rec = doRequest(t, http.HandlerFunc(h.Signup), nil, http.MethodPost, "/auth/signup",
		map[string]string{"name": "Ana", "email": "ana@example.com", "role": "PATIENT"})
	require.Equal(t, http.StatusCreated, rec.Code)
	signed := decode[SessionResponse](t, rec)
	assert.Equal(t, "Ana", signed.User.Name)

	users, err := st.Users(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)

	sess := testSession(signed.User)
	sess.ID = signed.SessionID
	rec = doRequest(t, http.HandlerFunc(h.Current), sess, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[SessionResponse](t, rec).Token)

	rec = doRequest(t, http.HandlerFunc(h.Logout), sess, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthHandler_RejectsInvalidRequests(t *testing.T) {
	h := NewAuthHandler(session.NewManager(newTestStore(t), "test-secret"), nil)

	rec := doRequest(t, http.HandlerFunc(h.Login), nil, http.MethodPost, "/auth/login",
		map[string]string{"email": "not-an-email", "role": "PATIENT"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.Signup), nil, http.MethodPost, "/auth/signup",
		map[string]string{"email": "a@example.com", "role": "NURSE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.Login), nil, http.MethodPost, "/auth/login", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.Logout), nil, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartHandler(t *testing.T) {
	h := NewCartHandler(catalog.NewService(newTestStore(t)), nil)
	sess := testSession(models.User{ID: "p1", Role: models.RolePatient})

	rec := doRequest(t, http.HandlerFunc(h.CompleteCheckout), sess, http.MethodPost, "/cart/checkout/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	for _, id := range []string{"1", "1", "2"} {
		rec = doRequest(t, http.HandlerFunc(h.AddItem), sess, http.MethodPost, "/cart/items", map[string]string{"productId": id})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	snap := decode[cart.Snapshot](t, rec)
	assert.Equal(t, 3, snap.Count)
	assert.InDelta(t, 95.0, snap.Total, 0.001)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, 2, snap.Items[0].Quantity)

	rec = doRequest(t, http.HandlerFunc(h.AddItem), sess, http.MethodPost, "/cart/items", map[string]string{"productId": "99"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.AddItem), sess, http.MethodPost, "/cart/items", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.BeginCheckout), sess, http.MethodPost, "/cart/checkout", nil)
	assert.True(t, decode[cart.Snapshot](t, rec).IsCheckout)
	rec = doRequest(t, http.HandlerFunc(h.ExitCheckout), sess, http.MethodDelete, "/cart/checkout", nil)
	assert.False(t, decode[cart.Snapshot](t, rec).IsCheckout)

	rec = doRequest(t, http.HandlerFunc(h.CompleteCheckout), sess, http.MethodPost, "/cart/checkout/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[cart.Snapshot](t, rec).Count)

	rec = doRequest(t, http.HandlerFunc(h.Get), sess, http.MethodGet, "/cart", nil)
	assert.Equal(t, 0, decode[cart.Snapshot](t, rec).Count)
}

type recordingNotifier struct {
	mu     sync.Mutex
	booked []models.Appointment
}

func (n *recordingNotifier) NotifyBooked(_ context.Context, appt models.Appointment, _ models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, appt)
}

func (n *recordingNotifier) BroadcastReminders(_ context.Context, appts []models.Appointment, _ []models.User) notify.BroadcastResult {
	return notify.BroadcastResult{Sent: len(appts)}
}

func TestBookingHandler_Flow(t *testing.T) {
	st := newTestStore(t)
	notifier := &recordingNotifier{}
	h := NewBookingHandler(st, notifier, nil, nil, nil)
	patient := models.User{ID: "p1", Name: "Ana", Role: models.RolePatient, Email: "ana@example.com"}
	sess := testSession(patient)

	rec := doRequest(t, http.HandlerFunc(h.Confirm), sess, http.MethodPost, "/booking/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.SelectDoctor), sess, http.MethodPost, "/booking/doctor", map[string]string{"doctorId": "zz"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, http.HandlerFunc(h.SelectDoctor), sess, http.MethodPost, "/booking/doctor", map[string]string{"doctorId": "d1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, booking.StateDoctorSelected, decode[booking.View](t, rec).State)

	rec = doRequest(t, http.HandlerFunc(h.SetSlot), sess, http.MethodPut, "/booking/slot", map[string]string{"time": "11:00 AM"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "d1 does not offer 11:00 AM")

	rec = doRequest(t, http.HandlerFunc(h.SetSlot), sess, http.MethodPut, "/booking/slot", map[string]string{"date": "2025-06-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[booking.View](t, rec).CanConfirm)

	rec = doRequest(t, http.HandlerFunc(h.SetSlot), sess, http.MethodPut, "/booking/slot", map[string]string{"time": "9:00 AM"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[booking.View](t, rec).CanConfirm)

	rec = doRequest(t, http.HandlerFunc(h.Confirm), sess, http.MethodPost, "/booking/confirm", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[booking.View](t, rec)
	assert.Equal(t, booking.StateConfirmed, view.State)
	require.NotNil(t, view.Appointment)
	assert.Equal(t, models.StatusPending, view.Appointment.Status)
	assert.Equal(t, models.PaymentUnpaid, view.Appointment.PaymentStatus)
	require.Len(t, notifier.booked, 1)

	rec = doRequest(t, http.HandlerFunc(h.ListOwn), sess, http.MethodGet, "/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decode[[]models.Appointment](t, rec)
	require.Len(t, own, 1)
	assert.Equal(t, "Dr. Sarah Smith", own[0].DoctorName)

	rec = doRequest(t, http.HandlerFunc(h.Return), sess, http.MethodPost, "/booking/return", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, booking.StateBrowsingDoctors, decode[booking.View](t, rec).State)

	rec = doRequest(t, http.HandlerFunc(h.Return), sess, http.MethodPost, "/booking/return", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookingHandler_BackClearsSelection(t *testing.T) {
	h := NewBookingHandler(newTestStore(t), nil, nil, nil, nil)
	sess := testSession(models.User{ID: "p1", Role: models.RolePatient})

	doRequest(t, http.HandlerFunc(h.SelectDoctor), sess, http.MethodPost, "/booking/doctor", map[string]string{"doctorId": "d2"})
	doRequest(t, http.HandlerFunc(h.SetSlot), sess, http.MethodPut, "/booking/slot", map[string]string{"date": "2025-06-01", "time": "1:00 PM"})

	rec := doRequest(t, http.HandlerFunc(h.Back), sess, http.MethodPost, "/booking/back", nil)
	view := decode[booking.View](t, rec)
	assert.Equal(t, booking.StateBrowsingDoctors, view.State)
	assert.Empty(t, view.Date)
	assert.Empty(t, view.Time)
	assert.Nil(t, view.Doctor)
}

func staffRouter(h *StaffHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/staff/appointments", h.List)
	r.Post("/staff/appointments/{id}/pay", h.MarkPaid)
	r.Delete("/staff/appointments/{id}", h.Remove)
	r.Get("/staff/appointments/{id}/receipt", h.Receipt)
	r.Post("/staff/reminders/broadcast", h.BroadcastReminders)
	return r
}

func TestStaffHandler(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, st.SaveAppointment(ctx, models.Appointment{
			ID: id, PatientID: "p1", PatientName: "Ana", DoctorID: "d1", DoctorName: "Dr. Sarah Smith",
			Date: "2025-06-01", Time: "9:00 AM", Status: models.StatusPending, PaymentStatus: models.PaymentUnpaid,
		}))
	}
	h := NewStaffHandler(queue.NewService(st), st, &recordingNotifier{}, nil, nil)
	router := staffRouter(h)
	staff := testSession(models.User{ID: "s1", Role: models.RoleStaff})

	rec := doRequest(t, router, staff, http.MethodGet, "/staff/appointments/a1/receipt", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "unpaid appointments have no receipt")

	rec = doRequest(t, router, staff, http.MethodPost, "/staff/appointments/a1/pay", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, router, staff, http.MethodPost, "/staff/appointments/a1/pay", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, staff, http.MethodGet, "/staff/appointments/a1/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "lume-receipt-a1.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	rec = doRequest(t, router, staff, http.MethodGet, "/staff/appointments/nope/receipt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, staff, http.MethodDelete, "/staff/appointments/a2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, router, staff, http.MethodDelete, "/staff/appointments/a2?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, staff, http.MethodGet, "/staff/appointments", nil)
	appts := decode[[]models.Appointment](t, rec)
	require.Len(t, appts, 1)
	assert.Equal(t, models.PaymentPaid, appts[0].PaymentStatus)

	rec = doRequest(t, router, staff, http.MethodPost, "/staff/reminders/broadcast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[notify.BroadcastResult](t, rec).Sent)
}
