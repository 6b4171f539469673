// Package booking implements the patient's three-step appointment flow:
// pick a doctor, pick a date and slot, confirm.
package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

type State string

const (
	StateBrowsingDoctors State = "BROWSING_DOCTORS"
	StateDoctorSelected  State = "DOCTOR_SELECTED"
	StateConfirmed       State = "CONFIRMED"
)

const dateLayout = "2006-01-02"

// AppointmentSaver persists a confirmed appointment.
type AppointmentSaver interface {
	SaveAppointment(ctx context.Context, appt models.Appointment) error
}

// Flow is one session's booking state. The zero value is not usable; call
// NewFlow.
type Flow struct {
	mu        sync.Mutex
	state     State
	doctor    *models.Doctor
	date      string
	slot      string
	confirmed *models.Appointment
	newID     func() string
}

type FlowOption func(*Flow)

// WithIDGenerator overrides appointment id generation.
func WithIDGenerator(fn func() string) FlowOption {
	return func(f *Flow) {
		if fn != nil {
			f.newID = fn
		}
	}
}

func NewFlow(opts ...FlowOption) *Flow {
	f := &Flow{state: StateBrowsingDoctors, newID: models.NewShortID}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SelectDoctor is only allowed while browsing.
func (f *Flow) SelectDoctor(doctor models.Doctor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateBrowsingDoctors {
		return fmt.Errorf("%w: select doctor from %s", ErrInvalidTransition, f.state)
	}
	d := doctor
	f.doctor = &d
	f.date, f.slot = "", ""
	f.state = StateDoctorSelected
	return nil
}

// Back returns to the doctor list and forgets any selection.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// SetDate accepts YYYY-MM-DD; an empty string clears the date.
func (f *Flow) SetDate(date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateDoctorSelected {
		return fmt.Errorf("%w: set date from %s", ErrInvalidTransition, f.state)
	}
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return ErrInvalidDate
		}
	}
	f.date = date
	return nil
}

// SetTime accepts one of the selected doctor's slots; an empty string clears it.
func (f *Flow) SetTime(slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateDoctorSelected {
		return fmt.Errorf("%w: set time from %s", ErrInvalidTransition, f.state)
	}
	if slot != "" && !f.doctor.Offers(slot) {
		return ErrSlotUnavailable
	}
	f.slot = slot
	return nil
}

func (f *Flow) CanConfirm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canConfirmLocked()
}

func (f *Flow) canConfirmLocked() bool {
	return f.state == StateDoctorSelected && f.doctor != nil && f.date != "" && f.slot != ""
}

// Confirm saves a PENDING/UNPAID appointment for patient and moves to
// Confirmed. Slots are not checked against existing bookings.
func (f *Flow) Confirm(ctx context.Context, patient models.User, saver AppointmentSaver) (models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.canConfirmLocked() {
		return models.Appointment{}, ErrNotConfirmable
	}
	appt := models.Appointment{
		ID:            f.newID(),
		PatientID:     patient.ID,
		PatientName:   patient.Name,
		DoctorID:      f.doctor.ID,
		DoctorName:    f.doctor.Name,
		Date:          f.date,
		Time:          f.slot,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
	}
	if err := saver.SaveAppointment(ctx, appt); err != nil {
		return models.Appointment{}, fmt.Errorf("booking: save appointment: %w", err)
	}
	f.confirmed = &appt
	f.state = StateConfirmed
	return appt, nil
}

// Return leaves the confirmation screen and starts over.
func (f *Flow) Return() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateConfirmed {
		return fmt.Errorf("%w: return from %s", ErrInvalidTransition, f.state)
	}
	f.resetLocked()
	return nil
}

func (f *Flow) resetLocked() {
	f.state = StateBrowsingDoctors
	f.doctor = nil
	f.date, f.slot = "", ""
	f.confirmed = nil
}

// View is the JSON shape of the flow.
type View struct {
	State       State               `json:"state"`
	Doctor      *models.Doctor      `json:"doctor,omitempty"`
	Date        string              `json:"date"`
	Time        string              `json:"time"`
	CanConfirm  bool                `json:"canConfirm"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := View{State: f.state, Date: f.date, Time: f.slot, CanConfirm: f.canConfirmLocked()}
	if f.doctor != nil {
		d := *f.doctor
		v.Doctor = &d
	}
	if f.confirmed != nil {
		a := *f.confirmed
		v.Appointment = &a
	}
	return v
}
