package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/lumeskin-platform/internal/booking"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

var tracer = otel.Tracer("lumeskin.internal.http.handlers")

// AppointmentStore saves confirmed bookings and lists a patient's own.
type AppointmentStore interface {
	booking.AppointmentSaver
	AppointmentsForPatient(ctx context.Context, patientID string) ([]models.Appointment, error)
}

// BookingNotifier sends the booking confirmation email.
type BookingNotifier interface {
	NotifyBooked(ctx context.Context, appt models.Appointment, patient models.User)
}

type BookingHandler struct {
	store     AppointmentStore
	notifier  BookingNotifier
	publisher events.Publisher
	metrics   *metrics.ClinicMetrics
	logger    *logging.Logger
}

func NewBookingHandler(store AppointmentStore, notifier BookingNotifier, publisher events.Publisher, m *metrics.ClinicMetrics, logger *logging.Logger) *BookingHandler {
	if store == nil {
		panic("handlers: appointment store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &BookingHandler{store: store, notifier: notifier, publisher: publisher, metrics: m, logger: logger}
}

type selectDoctorRequest struct {
	DoctorID string `json:"doctorId"`
}

// slotRequest sets whichever fields are present; an empty string clears one.
type slotRequest struct {
	Date *string `json:"date"`
	Time *string `json:"time"`
}

// Get handles GET /booking.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Booking.View())
}

// SelectDoctor handles POST /booking/doctor.
func (h *BookingHandler) SelectDoctor(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req selectDoctorRequest
	if err := decodeJSON(w, r, &req); err != nil || req.DoctorID == "" {
		jsonError(w, "doctorId is required", http.StatusBadRequest)
		return
	}
	doctor, found := catalog.DoctorByID(req.DoctorID)
	if !found {
		jsonError(w, booking.ErrUnknownDoctor.Error(), http.StatusNotFound)
		return
	}
	if err := sess.Booking.SelectDoctor(doctor); err != nil {
		h.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Booking.View())
}

// Back handles POST /booking/back.
func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	sess.Booking.Back()
	writeJSON(w, http.StatusOK, sess.Booking.View())
}

// SetSlot handles PUT /booking/slot.
func (h *BookingHandler) SetSlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req slotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Date != nil {
		if err := sess.Booking.SetDate(*req.Date); err != nil {
			h.writeFlowError(w, err)
			return
		}
	}
	if req.Time != nil {
		if err := sess.Booking.SetTime(*req.Time); err != nil {
			h.writeFlowError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.Booking.View())
}

// Confirm handles POST /booking/confirm.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	ctx, span := tracer.Start(r.Context(), "booking.confirm")
	defer span.End()

	appt, err := sess.Booking.Confirm(ctx, sess.User, h.store)
	if err != nil {
		if errors.Is(err, booking.ErrNotConfirmable) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		span.RecordError(err)
		h.logger.Error("failed to confirm booking", "error", err, "user_id", sess.User.ID)
		jsonError(w, "failed to save appointment", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID), attribute.String("doctor.id", appt.DoctorID))

	h.metrics.ObserveBooking(appt.DoctorID)
	events.PublishQuietly(ctx, h.publisher, h.logger, events.New(events.AppointmentBooked, appt))
	if h.notifier != nil {
		h.notifier.NotifyBooked(ctx, appt, sess.User)
	}
	h.logger.Info("appointment booked", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "user_id", sess.User.ID)
	writeJSON(w, http.StatusCreated, sess.Booking.View())
}

// Return handles POST /booking/return.
func (h *BookingHandler) Return(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	if err := sess.Booking.Return(); err != nil {
		h.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Booking.View())
}

// ListOwn handles GET /appointments.
func (h *BookingHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	appts, err := h.store.AppointmentsForPatient(r.Context(), sess.User.ID)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "user_id", sess.User.ID)
		jsonError(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *BookingHandler) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, booking.ErrNotConfirmable):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, booking.ErrInvalidDate), errors.Is(err, booking.ErrSlotUnavailable):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("booking flow failed", "error", err)
		jsonError(w, "booking failed", http.StatusInternalServerError)
	}
}
