package queue

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const feedWriteTimeout = 10 * time.Second

// ActorFunc returns the authenticated user behind a request.
type ActorFunc func(r *http.Request) (models.User, bool)

type feedMessage struct {
	Type         string               `json:"type"`
	Appointments []models.Appointment `json:"appointments,omitempty"`
	Error        string               `json:"error,omitempty"`
}

type feedCommand struct {
	Action  string `json:"action"`
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
}

// FeedHandler serves the live staff queue over a websocket. Each connection
// owns one View that is deactivated when the connection closes.
type FeedHandler struct {
	service  *Service
	actor    ActorFunc
	logger   *logging.Logger
	metrics  *metrics.ClinicMetrics
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewFeedHandler(service *Service, actor ActorFunc, logger *logging.Logger) *FeedHandler {
	if service == nil {
		panic("queue: service cannot be nil")
	}
	if actor == nil {
		panic("queue: actor func cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FeedHandler{
		service:  service,
		actor:    actor,
		logger:   logger,
		interval: DefaultRefreshInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *FeedHandler) WithInterval(d time.Duration) *FeedHandler {
	if d > 0 {
		h.interval = d
	}
	return h
}

func (h *FeedHandler) WithMetrics(m *metrics.ClinicMetrics) *FeedHandler {
	h.metrics = m
	return h
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("queue feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg feedMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("queue feed write failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view := NewView(h.service, h.logger).
		WithInterval(h.interval).
		WithMetrics(h.metrics).
		OnChange(func(items []models.Appointment) {
			send(feedMessage{Type: "queue", Appointments: items})
		})
	if err := view.Activate(ctx); err != nil {
		h.logger.Error("queue feed activate failed", "error", err)
		send(feedMessage{Type: "error", Error: "failed to load appointments"})
		return
	}
	defer view.Deactivate()
	h.logger.Info("queue feed opened", "actor_id", actor.ID)

	for {
		var cmd feedCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			h.logger.Info("queue feed closed", "actor_id", actor.ID)
			return
		}
		if err := h.apply(ctx, view, actor, cmd); err != nil {
			send(feedMessage{Type: "error", Error: err.Error()})
		}
	}
}

func (h *FeedHandler) apply(ctx context.Context, view *View, actor models.User, cmd feedCommand) error {
	switch cmd.Action {
	case "pay":
		return view.MarkPaid(ctx, actor, cmd.ID)
	case "remove":
		return view.Remove(ctx, actor, cmd.ID, cmd.Confirm)
	case "refresh":
		return view.Refresh(ctx)
	default:
		return errors.New("unknown action")
	}
}
