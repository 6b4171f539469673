package notify

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const templateHeader = "X-Lume-Template"

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds mail server settings. From.Address falls back to
// Username.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     Mailbox
}

// SMTPSender delivers through a plain SMTP relay.
type SMTPSender struct {
	dialer smtpDialer
	from   Mailbox
	logger *logging.Logger
}

// NewSMTPSender returns nil when no host is configured.
func NewSMTPSender(cfg SMTPConfig, logger *logging.Logger) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From.Address == "" {
		cfg.From.Address = cfg.Username
	}
	return newSMTPSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, logger)
}

func newSMTPSender(d smtpDialer, from Mailbox, logger *logging.Logger) *SMTPSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SMTPSender{dialer: d, from: from.withDefaultName(), logger: logger}
}

func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from.Address, s.from.Name)
	m.SetAddressHeader("To", msg.To.Address, msg.To.Name)
	m.SetHeader("Subject", msg.Subject)
	if msg.Template != "" {
		m.SetHeader(templateHeader, msg.Template)
	}
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return reportDelivery(s.logger, "smtp", msg, s.dialer.DialAndSend(m))
}

var _ EmailSender = (*SMTPSender)(nil)
