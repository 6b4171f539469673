// Package queue is the staff view of all appointments: listing, collecting
// payment at the desk, removing, and keeping a live view refreshed.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// AppointmentStore is the part of the store the queue needs.
type AppointmentStore interface {
	Appointments(ctx context.Context) ([]models.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, patch models.AppointmentPatch) error
	DeleteAppointment(ctx context.Context, id string) error
}

type Service struct {
	store     AppointmentStore
	auditor   audit.Recorder
	publisher events.Publisher
	logger    *logging.Logger
}

type Option func(*Service)

func WithAuditor(r audit.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.auditor = r
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store AppointmentStore, opts ...Option) *Service {
	if store == nil {
		panic("queue: appointment store cannot be nil")
	}
	s := &Service{store: store, auditor: audit.Nop{}, logger: logging.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every appointment in insertion order.
func (s *Service) List(ctx context.Context) ([]models.Appointment, error) {
	appts, err := s.store.Appointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	return appts, nil
}

func (s *Service) Find(ctx context.Context, id string) (models.Appointment, error) {
	appts, err := s.List(ctx)
	if err != nil {
		return models.Appointment{}, err
	}
	for _, a := range appts {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Appointment{}, ErrAppointmentNotFound
}

// MarkPaid records cash collected at the desk. Repeating it changes nothing;
// an unknown id is a no-op. Audit and events fire only on an actual change.
func (s *Service) MarkPaid(ctx context.Context, actor models.User, id string) error {
	paid := models.PaymentPaid
	current, err := s.Find(ctx, id)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue: mark paid %s: %w", id, err)
	}
	if current.PaymentStatus == paid {
		return nil
	}
	if err := s.store.UpdateAppointment(ctx, id, models.AppointmentPatch{PaymentStatus: &paid}); err != nil {
		return fmt.Errorf("queue: mark paid %s: %w", id, err)
	}
	s.record(ctx, audit.NewEvent(audit.ActionAppointmentPaid, actor, id, map[string]string{"paymentStatus": string(paid)}))
	events.PublishQuietly(ctx, s.publisher, s.logger, events.New(events.AppointmentPaid, map[string]string{"appointmentId": id}))
	s.logger.Info("appointment marked paid", "appointment_id", id, "actor_id", actor.ID)
	return nil
}

// Remove deletes the appointment only when confirmed is true.
func (s *Service) Remove(ctx context.Context, actor models.User, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if _, err := s.Find(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil
		}
		return fmt.Errorf("queue: remove %s: %w", id, err)
	}
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("queue: remove %s: %w", id, err)
	}
	s.record(ctx, audit.NewEvent(audit.ActionAppointmentRemoved, actor, id, nil))
	events.PublishQuietly(ctx, s.publisher, s.logger, events.New(events.AppointmentRemoved, map[string]string{"appointmentId": id}))
	s.logger.Info("appointment removed", "appointment_id", id, "actor_id", actor.ID)
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.Warn("audit record failed", "error", err, "action", event.Action, "target_id", event.TargetID)
	}
}
