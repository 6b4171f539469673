package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// sendgridPost delivers a built message and reports the HTTP status.
type sendgridPost func(ctx context.Context, m *mail.SGMailV3) (status int, body string, err error)

type SendGridConfig struct {
	APIKey string
	From   Mailbox
}

type SendGridSender struct {
	post   sendgridPost
	from   Mailbox
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	post := func(ctx context.Context, m *mail.SGMailV3) (int, string, error) {
		resp, err := client.SendWithContext(ctx, m)
		if err != nil {
			return 0, "", err
		}
		return resp.StatusCode, resp.Body, nil
	}
	return newSendGridSender(post, cfg.From, logger)
}

func newSendGridSender(post sendgridPost, from Mailbox, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{post: post, from: from.withDefaultName(), logger: logger}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	m := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Address),
		msg.Subject,
		mail.NewEmail(msg.To.Name, msg.To.Address),
		msg.Text,
		html,
	)
	if msg.Template != "" {
		m.AddCategories(msg.Template)
	}

	status, body, err := s.post(ctx, m)
	if err == nil && status >= 400 {
		err = fmt.Errorf("status %d: %s", status, body)
	}
	return reportDelivery(s.logger, "sendgrid", msg, err, "status", status)
}

var _ EmailSender = (*SendGridSender)(nil)
