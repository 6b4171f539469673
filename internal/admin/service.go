// Package admin backs the administrator dashboard: clinic statistics, the
// user directory, catalog price edits and the audit trail.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// ErrAuditUnavailable is returned when no audit database is configured.
var ErrAuditUnavailable = errors.New("admin: audit trail not configured")

// Store is the read side of the clinic store.
type Store interface {
	Users(ctx context.Context) ([]models.User, error)
	Products(ctx context.Context) ([]models.Product, error)
	Appointments(ctx context.Context) ([]models.Appointment, error)
}

// AuditQuerier reads back the audit trail.
type AuditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

type AppointmentStats struct {
	Total     int                              `json:"total"`
	ByStatus  map[models.AppointmentStatus]int `json:"byStatus"`
	ByPayment map[models.PaymentStatus]int     `json:"byPayment"`
}

type Stats struct {
	TotalUsers   int                 `json:"totalUsers"`
	UsersByRole  map[models.Role]int `json:"usersByRole"`
	Products     int                 `json:"products"`
	Appointments AppointmentStats    `json:"appointments"`
	AILatency    LatencySnapshot     `json:"aiLatency"`
}

type Service struct {
	store     Store
	catalog   *catalog.Service
	auditor   audit.Recorder
	querier   AuditQuerier
	publisher events.Publisher
	gatherer  prometheus.Gatherer
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

func WithAuditQuerier(q AuditQuerier) Option {
	return func(s *Service) { s.querier = q }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Service) { s.gatherer = g }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store Store, cat *catalog.Service, opts ...Option) *Service {
	if store == nil {
		panic("admin: store cannot be nil")
	}
	if cat == nil {
		panic("admin: catalog cannot be nil")
	}
	s := &Service{store: store, catalog: cat, auditor: audit.Nop{}, logger: logging.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats counts every role, status and payment state, including zeroes.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("admin: stats users: %w", err)
	}
	products, err := s.store.Products(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("admin: stats products: %w", err)
	}
	appts, err := s.store.Appointments(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("admin: stats appointments: %w", err)
	}

	stats := Stats{
		TotalUsers:  len(users),
		UsersByRole: make(map[models.Role]int, len(models.Roles)),
		Products:    len(products),
		Appointments: AppointmentStats{
			Total: len(appts),
			ByStatus: map[models.AppointmentStatus]int{
				models.StatusPending: 0, models.StatusConfirmed: 0, models.StatusCancelled: 0,
			},
			ByPayment: map[models.PaymentStatus]int{models.PaymentUnpaid: 0, models.PaymentPaid: 0},
		},
		AILatency: snapshotLatency(s.gatherer),
	}
	for _, r := range models.Roles {
		stats.UsersByRole[r] = 0
	}
	for _, u := range users {
		stats.UsersByRole[u.Role]++
	}
	for _, a := range appts {
		stats.Appointments.ByStatus[a.Status]++
		stats.Appointments.ByPayment[a.PaymentStatus]++
	}
	return stats, nil
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	return users, nil
}

// SetPrice changes a product's price. Price is the only field an
// administrator edits.
func (s *Service) SetPrice(ctx context.Context, actor models.User, productID string, price float64) (models.Product, error) {
	before, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return models.Product{}, err
	}
	updated, err := s.catalog.Update(ctx, productID, models.ProductPatch{Price: &price})
	if err != nil {
		return models.Product{}, err
	}

	details := map[string]float64{"oldPrice": before.Price, "newPrice": updated.Price}
	if err := s.auditor.Record(ctx, audit.NewEvent(audit.ActionProductUpdated, actor, productID, details)); err != nil {
		s.logger.Warn("audit record failed", "error", err, "product_id", productID)
	}
	if before.Price != updated.Price {
		events.PublishQuietly(ctx, s.publisher, s.logger, events.New(events.ProductPriceChanged, map[string]any{
			"productId": productID,
			"oldPrice":  before.Price,
			"newPrice":  updated.Price,
		}))
	}
	s.logger.Info("product price updated", "product_id", productID, "actor_id", actor.ID, "price", updated.Price)
	return updated, nil
}

func (s *Service) AuditTrail(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	if s.querier == nil {
		return nil, ErrAuditUnavailable
	}
	return s.querier.Query(ctx, filter)
}
