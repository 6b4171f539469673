package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/lumeskin-platform/internal/admin"
	"github.com/wolfman30/lumeskin-platform/internal/api/router"
	"github.com/wolfman30/lumeskin-platform/internal/assistant"
	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/internal/dashboard"
	"github.com/wolfman30/lumeskin-platform/internal/doctor"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/lumeskin-platform/internal/http/middleware"
	"github.com/wolfman30/lumeskin-platform/internal/notify"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/internal/queue"
	"github.com/wolfman30/lumeskin-platform/internal/session"
	"github.com/wolfman30/lumeskin-platform/internal/store"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// Options lets tests and the CLI swap process-wide collaborators.
type Options struct {
	Registry *prometheus.Registry
	AWS      aws.Config
}

// App is the wired clinic platform shared by the HTTP server, the Lambda
// adapter and the CLI.
type App struct {
	Config    *appconfig.Config
	Logger    *logging.Logger
	Metrics   *metrics.ClinicMetrics
	Store     *store.Store
	Catalog   *catalog.Service
	Sessions  *session.Manager
	Queue     *queue.Service
	Admin     *admin.Service
	Doctors   *doctor.Service
	Notifier  *notify.Notifier
	Publisher events.Publisher
	Auditor   audit.Recorder
	Assistant AssistantPipeline
	Model     assistant.Model

	Deliverer   *events.Deliverer
	RateLimiter *httpmiddleware.RateLimiter

	registry *prometheus.Registry
	pool     *pgxpool.Pool
	auditDB  *sql.DB
	closers  []closer
}

// Build wires every component from cfg. Call Close when done.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (_ *App, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	app := &App{Config: cfg, Logger: logger, registry: reg}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	app.Metrics = metrics.NewClinicMetrics(reg)

	needPool := cfg.KVBackend == "postgres" || cfg.EventOutbox
	if needPool {
		pool, err := BuildPostgresPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if pool != nil {
			app.pool = pool
			app.closers = append(app.closers, func(context.Context) error { pool.Close(); return nil })
		}
	}

	backend, release, err := BuildKVBackend(ctx, cfg, opts.AWS, app.pool, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, release)

	app.Store = store.New(backend,
		store.WithPrefix(cfg.KeyPrefix),
		store.WithSeedProducts(catalog.SeedProducts()),
		store.WithMetrics(app.Metrics),
		store.WithLogger(logger.Component("store")),
	)
	if err := app.Store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: init store: %w", err)
	}

	auditSvc, auditDB, err := BuildAuditService(cfg)
	if err != nil {
		return nil, err
	}
	app.Auditor = audit.Nop{}
	if auditSvc != nil {
		app.Auditor = auditSvc
		app.auditDB = auditDB
		app.closers = append(app.closers, func(context.Context) error { return auditDB.Close() })
	}

	publisher, deliverer, releaseEvents := BuildEventPublisher(cfg, app.pool, logger.Component("events"))
	app.Publisher = publisher
	app.Deliverer = deliverer
	app.closers = append(app.closers, func(context.Context) error { releaseEvents(); return nil })

	sender, transport := BuildEmailSender(cfg, opts.AWS, logger.Component("notify"))
	logger.Info("email transport selected", "transport", transport)
	app.Notifier = notify.NewNotifier(sender, app.Metrics, logger.Component("notify"))

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("SESSION_SECRET not set; tokens will not survive a restart")
	}
	app.Sessions = session.NewManager(app.Store, secret,
		session.WithTTL(cfg.SessionTTL),
		session.WithLogger(logger.Component("session")),
	)

	app.Catalog = catalog.NewService(app.Store)
	app.Queue = queue.NewService(app.Store,
		queue.WithAuditor(app.Auditor),
		queue.WithPublisher(app.Publisher),
		queue.WithLogger(logger.Component("queue")),
	)
	app.Doctors = doctor.NewService(app.Store, app.Auditor, logger.Component("doctor"))

	adminOpts := []admin.Option{
		admin.WithAuditor(app.Auditor),
		admin.WithPublisher(app.Publisher),
		admin.WithGatherer(reg),
		admin.WithLogger(logger.Component("admin")),
	}
	if auditSvc != nil {
		adminOpts = append(adminOpts, admin.WithAuditQuerier(auditSvc))
	}
	app.Admin = admin.NewService(app.Store, app.Catalog, adminOpts...)

	model, releaseModel, err := BuildAssistantModel(ctx, cfg, opts.AWS, logger.Component("assistant"))
	if err != nil {
		return nil, err
	}
	app.Model = model
	app.closers = append(app.closers, func(context.Context) error { releaseModel(); return nil })

	pipeline, err := BuildAssistantPipeline(cfg, opts.AWS)
	if err != nil {
		return nil, err
	}
	app.Assistant = pipeline

	app.RateLimiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	return app, nil
}

// Router builds the HTTP surface over the wired services.
func (a *App) Router() http.Handler {
	logger := a.Logger
	publisherOpts := []assistant.PublisherOption{assistant.WithPublisherLogger(logger.Component("assistant"))}
	if a.Assistant.Images != nil {
		publisherOpts = append(publisherOpts, assistant.WithImageStore(a.Assistant.Images))
	}
	taskPublisher := assistant.NewPublisher(a.Assistant.Queue, a.Assistant.Tasks, publisherOpts...)

	return router.New(&router.Config{
		Logger:    logger,
		Sessions:  a.Sessions,
		Auth:      handlers.NewAuthHandler(a.Sessions, logger),
		Catalog:   catalog.NewHandler(a.Catalog, logger),
		Dashboard: dashboard.NewDispatcher(a.Catalog, a.Store, a.Doctors, a.Admin, logger),
		Cart:      handlers.NewCartHandler(a.Catalog, logger),
		Booking:   handlers.NewBookingHandler(a.Store, a.Notifier, a.Publisher, a.Metrics, logger),
		Staff:     handlers.NewStaffHandler(a.Queue, a.Store, a.Notifier, a.Auditor, logger),
		Assistant: assistant.NewHandler(taskPublisher, httpmiddleware.Actor, logger),
		Doctor:    doctor.NewHandler(a.Doctors, httpmiddleware.Actor, logger),
		Admin:     admin.NewHandler(a.Admin, httpmiddleware.Actor, logger),
		StaffFeed: queue.NewFeedHandler(a.Queue, httpmiddleware.Actor, logger).
			WithInterval(a.Config.QueueRefreshInterval).
			WithMetrics(a.Metrics),
		RateLimiter:        a.RateLimiter,
		MetricsHandler:     promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: a.Config.AllowedOrigins,
	})
}

// Worker builds the assistant worker that settles queued tasks.
func (a *App) Worker() *assistant.Worker {
	logger := a.Logger.Component("assistant")
	runner := assistant.NewRunner(a.Model,
		assistant.WithTimeout(a.Config.AITimeout),
		assistant.WithRunnerMetrics(a.Metrics),
		assistant.WithRunnerLogger(logger),
	)
	opts := []assistant.WorkerOption{
		assistant.WithWorkerCount(a.Config.WorkerCount),
		assistant.WithEventPublisher(a.Publisher),
		assistant.WithWorkerMetrics(a.Metrics),
	}
	if a.Assistant.Images != nil {
		opts = append(opts, assistant.WithWorkerImages(a.Assistant.Images))
	}
	return assistant.NewWorker(runner, a.Assistant.Queue, a.Assistant.Tasks, logger, opts...)
}

// StartBackground runs the rate limiter sweep, the event outbox deliverer
// and, for the in-process queue, the assistant worker until ctx is done.
// The inline worker is returned so callers can Wait on shutdown; it is nil
// when tasks are consumed by a separate process.
func (a *App) StartBackground(ctx context.Context) *assistant.Worker {
	go a.RateLimiter.Sweep(ctx)
	if a.Deliverer != nil {
		go a.Deliverer.Start(ctx)
	}
	if !a.Assistant.Inline {
		return nil
	}
	worker := a.Worker()
	worker.Start(ctx)
	a.Logger.Info("assistant worker running inline")
	return worker
}

// Close releases resources in reverse build order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("bootstrap: read random secret: %v", err))
	}
	return hex.EncodeToString(buf)
}
