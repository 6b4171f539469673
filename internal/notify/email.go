package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const defaultFromName = "Lume Skin"

// EmailSender is one outbound transport. Bootstrap picks SendGrid, SES,
// SMTP or the log sender.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Mailbox is a display name plus address.
type Mailbox struct {
	Address string
	Name    string
}

func (m Mailbox) String() string {
	if m.Name == "" {
		return m.Address
	}
	return (&mail.Address{Name: m.Name, Address: m.Address}).String()
}

func (m Mailbox) withDefaultName() Mailbox {
	if strings.TrimSpace(m.Name) == "" {
		m.Name = defaultFromName
	}
	return m
}

// EmailMessage is a rendered appointment email. Template tags the message
// for provider analytics and is never shown to the patient.
type EmailMessage struct {
	To       Mailbox
	Subject  string
	Text     string
	HTML     string
	Template string
}

// reportDelivery logs one transport attempt and wraps its error. Recipient
// addresses are left out of the log.
func reportDelivery(logger *logging.Logger, transport string, msg EmailMessage, err error, attrs ...any) error {
	if err != nil {
		logger.Error("email delivery failed", "transport", transport, "template", msg.Template, "error", err)
		return fmt.Errorf("notify: %s: %w", transport, err)
	}
	logger.Info("email delivered", append([]any{"transport", transport, "template", msg.Template}, attrs...)...)
	return nil
}

// LogSender only logs. It stands in when no transport is configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("email not sent: no transport configured", "template", msg.Template, "subject", msg.Subject)
	return nil
}
