// Package store persists the clinic's three collections (users, products and
// appointments) as whole JSON documents in a key-value backend.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

var tracer = otel.Tracer("lumeskin.internal.store")

// DefaultPrefix matches the keys the browser client already wrote.
const DefaultPrefix = "derma_"

const (
	usersKey        = "users"
	productsKey     = "products"
	appointmentsKey = "appointments"
)

// SeedAdmin is written to an empty users collection on Init.
var SeedAdmin = models.User{
	ID:    "admin1",
	Name:  "System Admin",
	Role:  models.RoleAdmin,
	Email: "admin@derma.com",
}

// Store is safe for concurrent use within one process. Read-modify-write
// cycles are serialized by mu; other processes sharing the backend are not
// coordinated and the last writer wins.
type Store struct {
	backend      kv.Backend
	prefix       string
	seedProducts []models.Product
	metrics      *metrics.ClinicMetrics
	logger       *logging.Logger

	mu sync.Mutex
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithSeedProducts sets the products written by Init when none are stored.
func WithSeedProducts(products []models.Product) Option {
	return func(s *Store) {
		s.seedProducts = append([]models.Product(nil), products...)
	}
}

func WithMetrics(m *metrics.ClinicMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(backend kv.Backend, opts ...Option) *Store {
	if backend == nil {
		panic("store: kv backend cannot be nil")
	}
	s := &Store{
		backend: backend,
		prefix:  DefaultPrefix,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the backend key for a document name.
func (s *Store) Key(name string) string {
	return s.prefix + name
}

func (s *Store) observe(ctx context.Context, op string) (context.Context, func(*error)) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(attribute.String("lume.store.op", op)))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveStore(op, started, err)
	}
}

func readCollection[T any](ctx context.Context, s *Store, name string) ([]T, error) {
	key := s.Key(name)
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	items := []T{}
	if !found || len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w: %v", key, ErrCorruptDocument, err)
	}
	return items, nil
}

func writeCollection[T any](ctx context.Context, s *Store, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	if err := s.backend.Set(ctx, s.Key(name), data); err != nil {
		return fmt.Errorf("store: write %s: %w", s.Key(name), err)
	}
	return nil
}

// Init seeds each collection whose key is absent. Running it again leaves
// existing data untouched.
func (s *Store) Init(ctx context.Context) (err error) {
	ctx, done := s.observe(ctx, "init")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	seeds := []struct {
		name  string
		value any
	}{
		{usersKey, []models.User{SeedAdmin}},
		{productsKey, s.seedProductsOrEmpty()},
		{appointmentsKey, []models.Appointment{}},
	}
	for _, seed := range seeds {
		key := s.Key(seed.name)
		_, found, err := s.backend.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("store: init %s: %w", key, err)
		}
		if found {
			continue
		}
		data, err := json.Marshal(seed.value)
		if err != nil {
			return fmt.Errorf("store: encode seed %s: %w", key, err)
		}
		if err := s.backend.Set(ctx, key, data); err != nil {
			return fmt.Errorf("store: seed %s: %w", key, err)
		}
		s.logger.Info("seeded collection", "key", key)
	}
	return nil
}

func (s *Store) seedProductsOrEmpty() []models.Product {
	if s.seedProducts == nil {
		return []models.Product{}
	}
	return s.seedProducts
}

// LoadDocument decodes an auxiliary document (session markers, doctor
// schedules) stored under the store prefix.
func (s *Store) LoadDocument(ctx context.Context, name string, v any) (found bool, err error) {
	ctx, done := s.observe(ctx, "load_document")
	defer done(&err)

	key := s.Key(name)
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: read %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w: %v", key, ErrCorruptDocument, err)
	}
	return true, nil
}

func (s *Store) SaveDocument(ctx context.Context, name string, v any) (err error) {
	ctx, done := s.observe(ctx, "save_document")
	defer done(&err)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	if err := s.backend.Set(ctx, s.Key(name), data); err != nil {
		return fmt.Errorf("store: write %s: %w", s.Key(name), err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, name string) (err error) {
	ctx, done := s.observe(ctx, "delete_document")
	defer done(&err)

	if err := s.backend.Delete(ctx, s.Key(name)); err != nil {
		return fmt.Errorf("store: delete %s: %w", s.Key(name), err)
	}
	return nil
}

// Reset drops every collection and seeds them again.
func (s *Store) Reset(ctx context.Context) error {
	for _, name := range []string{usersKey, productsKey, appointmentsKey} {
		if err := s.DeleteDocument(ctx, name); err != nil {
			return err
		}
	}
	return s.Init(ctx)
}
