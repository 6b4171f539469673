// Package dashboard dispatches the home view on the caller's role. Each role
// has exactly one builder and the response is tagged with the role.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wolfman30/lumeskin-platform/internal/admin"
	"github.com/wolfman30/lumeskin-platform/internal/booking"
	"github.com/wolfman30/lumeskin-platform/internal/cart"
	"github.com/wolfman30/lumeskin-platform/internal/doctor"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/session"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// Home is the tagged response: Role says which one of the view fields is set.
type Home struct {
	Role    models.Role  `json:"role"`
	User    models.User  `json:"user"`
	Patient *PatientHome `json:"patient,omitempty"`
	Doctor  *DoctorHome  `json:"doctor,omitempty"`
	Admin   *AdminHome   `json:"admin,omitempty"`
	Staff   *StaffHome   `json:"staff,omitempty"`
}

type PatientHome struct {
	Featured     []models.Product     `json:"featured"`
	Appointments []models.Appointment `json:"appointments"`
	Cart         cart.Snapshot        `json:"cart"`
	Booking      booking.View         `json:"booking"`
}

type DoctorHome struct {
	Schedule     doctor.Schedule      `json:"schedule"`
	Appointments []models.Appointment `json:"appointments"`
}

type AdminHome struct {
	Stats admin.Stats `json:"stats"`
}

type StaffHome struct {
	Appointments []models.Appointment `json:"appointments"`
	Unpaid       int                  `json:"unpaid"`
}

// Catalog supplies the featured products.
type Catalog interface {
	Featured(ctx context.Context) ([]models.Product, error)
}

type Appointments interface {
	Appointments(ctx context.Context) ([]models.Appointment, error)
	AppointmentsForPatient(ctx context.Context, patientID string) ([]models.Appointment, error)
}

type Schedules interface {
	Schedule(ctx context.Context, doctorID string) (doctor.Schedule, error)
}

type Stats interface {
	Stats(ctx context.Context) (admin.Stats, error)
}

type builder func(ctx context.Context, sess *session.Session, home *Home) error

type Dispatcher struct {
	catalog      Catalog
	appointments Appointments
	schedules    Schedules
	stats        Stats
	builders     map[models.Role]builder
	logger       *logging.Logger
}

func NewDispatcher(cat Catalog, appts Appointments, schedules Schedules, stats Stats, logger *logging.Logger) *Dispatcher {
	if cat == nil || appts == nil || schedules == nil || stats == nil {
		panic("dashboard: all collaborators are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{catalog: cat, appointments: appts, schedules: schedules, stats: stats, logger: logger}
	d.builders = map[models.Role]builder{
		models.RolePatient: d.patient,
		models.RoleDoctor:  d.doctor,
		models.RoleAdmin:   d.admin,
		models.RoleStaff:   d.staff,
	}
	return d
}

// Build returns the home view for the session's role.
func (d *Dispatcher) Build(ctx context.Context, sess *session.Session) (Home, error) {
	home := Home{Role: sess.User.Role, User: sess.User}
	build, ok := d.builders[sess.User.Role]
	if !ok {
		return Home{}, fmt.Errorf("dashboard: no view for role %q", sess.User.Role)
	}
	if err := build(ctx, sess, &home); err != nil {
		return Home{}, err
	}
	return home, nil
}

func (d *Dispatcher) patient(ctx context.Context, sess *session.Session, home *Home) error {
	featured, err := d.catalog.Featured(ctx)
	if err != nil {
		return fmt.Errorf("dashboard: featured products: %w", err)
	}
	appts, err := d.appointments.AppointmentsForPatient(ctx, sess.User.ID)
	if err != nil {
		return fmt.Errorf("dashboard: patient appointments: %w", err)
	}
	home.Patient = &PatientHome{
		Featured:     featured,
		Appointments: appts,
		Cart:         sess.Cart.Snapshot(),
		Booking:      sess.Booking.View(),
	}
	return nil
}

// doctor lists appointments booked under the doctor's display name, which is
// how the static directory links to doctor accounts.
func (d *Dispatcher) doctor(ctx context.Context, sess *session.Session, home *Home) error {
	sched, err := d.schedules.Schedule(ctx, sess.User.ID)
	if err != nil {
		return err
	}
	all, err := d.appointments.Appointments(ctx)
	if err != nil {
		return fmt.Errorf("dashboard: doctor appointments: %w", err)
	}
	mine := []models.Appointment{}
	for _, a := range all {
		if a.DoctorName == sess.User.Name {
			mine = append(mine, a)
		}
	}
	home.Doctor = &DoctorHome{Schedule: sched, Appointments: mine}
	return nil
}

func (d *Dispatcher) admin(ctx context.Context, _ *session.Session, home *Home) error {
	stats, err := d.stats.Stats(ctx)
	if err != nil {
		return err
	}
	home.Admin = &AdminHome{Stats: stats}
	return nil
}

func (d *Dispatcher) staff(ctx context.Context, _ *session.Session, home *Home) error {
	appts, err := d.appointments.Appointments(ctx)
	if err != nil {
		return fmt.Errorf("dashboard: staff appointments: %w", err)
	}
	unpaid := 0
	for _, a := range appts {
		if a.PaymentStatus == models.PaymentUnpaid {
			unpaid++
		}
	}
	home.Staff = &StaffHome{Appointments: appts, Unpaid: unpaid}
	return nil
}

// ServeHTTP handles GET /dashboard.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	home, err := d.Build(r.Context(), sess)
	if err != nil {
		d.logger.Error("failed to build dashboard", "error", err, "role", sess.User.Role, "user_id", sess.User.ID)
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(home); err != nil {
		d.logger.Error("failed to write JSON response", "error", err)
	}
}
