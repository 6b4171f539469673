package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/lumeskin-platform/internal/admin"
	"github.com/wolfman30/lumeskin-platform/internal/assistant"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	"github.com/wolfman30/lumeskin-platform/internal/dashboard"
	"github.com/wolfman30/lumeskin-platform/internal/doctor"
	"github.com/wolfman30/lumeskin-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/lumeskin-platform/internal/http/middleware"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/queue"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger   *logging.Logger
	Sessions httpmiddleware.SessionResolver

	Auth      *handlers.AuthHandler
	Catalog   *catalog.Handler
	Dashboard *dashboard.Dispatcher
	Cart      *handlers.CartHandler
	Booking   *handlers.BookingHandler
	Staff     *handlers.StaffHandler

	// Optional surfaces
	Assistant   *assistant.Handler
	Doctor      *doctor.Handler
	Admin       *admin.Handler
	StaffFeed   *queue.FeedHandler
	RateLimiter *httpmiddleware.RateLimiter

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/catalog", func(r chi.Router) {
			r.Get("/products", cfg.Catalog.ListProducts)
			r.Get("/doctors", cfg.Catalog.ListDoctors)
		})
		public.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}
			r.Post("/auth/login", cfg.Auth.Login)
			r.Post("/auth/signup", cfg.Auth.Signup)
		})
	})

	// Session-scoped routes
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.Authenticate(cfg.Sessions, cfg.Logger))

		authed.Get("/session", cfg.Auth.Current)
		authed.Post("/auth/logout", cfg.Auth.Logout)
		authed.Handle("/dashboard", cfg.Dashboard)

		authed.Group(func(patient chi.Router) {
			patient.Use(httpmiddleware.RequireRole(models.RolePatient))
			patient.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.Get)
				r.Post("/items", cfg.Cart.AddItem)
				r.Post("/checkout", cfg.Cart.BeginCheckout)
				r.Delete("/checkout", cfg.Cart.ExitCheckout)
				r.Post("/checkout/complete", cfg.Cart.CompleteCheckout)
			})
			patient.Route("/booking", func(r chi.Router) {
				r.Get("/", cfg.Booking.Get)
				r.Post("/doctor", cfg.Booking.SelectDoctor)
				r.Post("/back", cfg.Booking.Back)
				r.Put("/slot", cfg.Booking.SetSlot)
				r.Post("/confirm", cfg.Booking.Confirm)
				r.Post("/return", cfg.Booking.Return)
			})
			patient.Get("/appointments", cfg.Booking.ListOwn)
			if cfg.Assistant != nil {
				patient.Route("/assistant", func(r chi.Router) {
					r.Post("/analysis", cfg.Assistant.Analyze)
					r.Post("/chat", cfg.Assistant.Chat)
					r.Get("/tasks/{taskID}", cfg.Assistant.GetTask)
				})
			}
		})

		if cfg.Doctor != nil {
			authed.Route("/doctor", func(r chi.Router) {
				r.Use(httpmiddleware.RequireRole(models.RoleDoctor))
				r.Get("/schedule", cfg.Doctor.GetSchedule)
				r.Post("/schedule/{day}/toggle", cfg.Doctor.ToggleDay)
				r.Put("/online", cfg.Doctor.SetOnline)
			})
		}

		authed.Route("/staff", func(r chi.Router) {
			r.Use(httpmiddleware.RequireRole(models.RoleStaff))
			r.Get("/appointments", cfg.Staff.List)
			if cfg.StaffFeed != nil {
				r.Get("/appointments/feed", cfg.StaffFeed.ServeHTTP)
			}
			r.Post("/appointments/{id}/pay", cfg.Staff.MarkPaid)
			r.Delete("/appointments/{id}", cfg.Staff.Remove)
			r.Get("/appointments/{id}/receipt", cfg.Staff.Receipt)
			r.Post("/reminders/broadcast", cfg.Staff.BroadcastReminders)
		})

		if cfg.Admin != nil {
			authed.Route("/admin", func(r chi.Router) {
				r.Use(httpmiddleware.RequireRole(models.RoleAdmin))
				r.Get("/stats", cfg.Admin.GetStats)
				r.Get("/users", cfg.Admin.ListUsers)
				r.Patch("/products/{id}", cfg.Admin.UpdateProduct)
				r.Get("/audit", cfg.Admin.ListAudit)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
