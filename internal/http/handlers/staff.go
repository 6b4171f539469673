package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/notify"
	"github.com/wolfman30/lumeskin-platform/internal/queue"
	"github.com/wolfman30/lumeskin-platform/internal/receipt"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// AppointmentQueue is the staff view of the appointment collection.
type AppointmentQueue interface {
	List(ctx context.Context) ([]models.Appointment, error)
	Find(ctx context.Context, id string) (models.Appointment, error)
	MarkPaid(ctx context.Context, actor models.User, id string) error
	Remove(ctx context.Context, actor models.User, id string, confirmed bool) error
}

type UserLister interface {
	Users(ctx context.Context) ([]models.User, error)
}

type ReminderSender interface {
	BroadcastReminders(ctx context.Context, appts []models.Appointment, users []models.User) notify.BroadcastResult
}

type StaffHandler struct {
	queue    AppointmentQueue
	users    UserLister
	reminder ReminderSender
	auditor  audit.Recorder
	now      func() time.Time
	logger   *logging.Logger
}

func NewStaffHandler(q AppointmentQueue, users UserLister, reminder ReminderSender, auditor audit.Recorder, logger *logging.Logger) *StaffHandler {
	if q == nil || users == nil || reminder == nil {
		panic("handlers: staff handler requires queue, users and reminder sender")
	}
	if auditor == nil {
		auditor = audit.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffHandler{queue: q, users: users, reminder: reminder, auditor: auditor, now: time.Now, logger: logger}
}

// List handles GET /staff/appointments.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	appts, err := h.queue.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		jsonError(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

// MarkPaid handles POST /staff/appointments/{id}/pay. Unknown ids and
// repeats succeed without changing anything.
func (h *StaffHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.queue.MarkPaid(r.Context(), sess.User, id); err != nil {
		h.logger.Error("failed to mark appointment paid", "error", err, "appointment_id", id)
		jsonError(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /staff/appointments/{id}?confirm=true.
func (h *StaffHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.queue.Remove(r.Context(), sess.User, id, confirmed); err != nil {
		if errors.Is(err, queue.ErrConfirmationRequired) {
			jsonError(w, "pass confirm=true to delete the appointment", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to remove appointment", "error", err, "appointment_id", id)
		jsonError(w, "failed to remove appointment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Receipt handles GET /staff/appointments/{id}/receipt and streams a PDF.
func (h *StaffHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := h.queue.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrAppointmentNotFound) {
			jsonError(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load appointment", "error", err, "appointment_id", id)
		jsonError(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	pdf, err := receipt.Render(appt, h.now())
	if err != nil {
		if errors.Is(err, receipt.ErrNotPaid) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("failed to render receipt", "error", err, "appointment_id", id)
		jsonError(w, "failed to render receipt", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename(appt)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// BroadcastReminders handles POST /staff/reminders/broadcast.
func (h *StaffHandler) BroadcastReminders(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	appts, err := h.queue.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		jsonError(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	users, err := h.users.Users(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		jsonError(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	res := h.reminder.BroadcastReminders(r.Context(), appts, users)
	if err := h.auditor.Record(r.Context(), audit.NewEvent(audit.ActionRemindersSent, sess.User, "", res)); err != nil {
		h.logger.Warn("audit record failed", "error", err, "action", audit.ActionRemindersSent)
	}
	writeJSON(w, http.StatusOK, res)
}
