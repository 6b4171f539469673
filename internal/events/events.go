// Package events publishes clinic domain events (bookings, payments, catalog
// edits) to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

type Type string

const (
	AppointmentBooked    Type = "appointment.booked"
	AppointmentPaid      Type = "appointment.paid"
	AppointmentRemoved   Type = "appointment.removed"
	ProductPriceChanged  Type = "product.price_changed"
	AssistantTaskSettled Type = "assistant.task_settled"
)

type Event struct {
	ID         string    `json:"event_id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(t Type, payload any) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher delivers events. Publish failures are reported but callers treat
// them as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the structured log; used when no broker is
// configured.
type LogPublisher struct {
	logger *logging.Logger
}

func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("domain event", "event_id", event.ID, "type", event.Type)
	return nil
}

// PublishQuietly sends event through p and logs instead of returning errors.
// A nil publisher is allowed.
func PublishQuietly(ctx context.Context, p Publisher, logger *logging.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("event publish failed", "error", err, "type", event.Type, "event_id", event.ID)
	}
}
