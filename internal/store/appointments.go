package store

import (
	"context"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

// Appointments returns the collection in insertion order.
func (s *Store) Appointments(ctx context.Context) (appts []models.Appointment, err error) {
	ctx, done := s.observe(ctx, "appointments")
	defer done(&err)
	return readCollection[models.Appointment](ctx, s, appointmentsKey)
}

// AppointmentsForPatient filters the collection to one patient.
func (s *Store) AppointmentsForPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	all, err := s.Appointments(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Appointment{}
	for _, a := range all {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveAppointment(ctx context.Context, appt models.Appointment) (err error) {
	ctx, done := s.observe(ctx, "save_appointment")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	appts, err := readCollection[models.Appointment](ctx, s, appointmentsKey)
	if err != nil {
		return err
	}
	return writeCollection(ctx, s, appointmentsKey, append(appts, appt))
}

// UpdateAppointment merges patch into the matching appointment. An unknown id
// is a no-op and the collection is rewritten unchanged.
func (s *Store) UpdateAppointment(ctx context.Context, id string, patch models.AppointmentPatch) (err error) {
	ctx, done := s.observe(ctx, "update_appointment")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	appts, err := readCollection[models.Appointment](ctx, s, appointmentsKey)
	if err != nil {
		return err
	}
	for i, a := range appts {
		if a.ID == id {
			appts[i] = patch.Apply(a)
		}
	}
	return writeCollection(ctx, s, appointmentsKey, appts)
}

// DeleteAppointment removes every appointment with the given id.
func (s *Store) DeleteAppointment(ctx context.Context, id string) (err error) {
	ctx, done := s.observe(ctx, "delete_appointment")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	appts, err := readCollection[models.Appointment](ctx, s, appointmentsKey)
	if err != nil {
		return err
	}
	kept := appts[:0]
	for _, a := range appts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	return writeCollection(ctx, s, appointmentsKey, kept)
}
