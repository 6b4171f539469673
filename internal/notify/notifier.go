package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const (
	templateBooked   = "appointment_booked"
	templateReminder = "appointment_reminder"
)

// Notifier emails patients about their appointments. Delivery failures are
// logged and counted, never returned to the booking path.
type Notifier struct {
	sender  EmailSender
	metrics *metrics.ClinicMetrics
	logger  *logging.Logger
	md      goldmark.Markdown
}

func NewNotifier(sender EmailSender, m *metrics.ClinicMetrics, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Notifier{sender: sender, metrics: m, logger: logger, md: goldmark.New()}
}

// BroadcastResult summarises a reminder run.
type BroadcastResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// NotifyBooked sends the booking confirmation. Temporary identities have no
// stored email and are skipped.
func (n *Notifier) NotifyBooked(ctx context.Context, appt models.Appointment, patient models.User) {
	if patient.Email == "" {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nYour appointment with **%s** is booked for **%s at %s**.\n\nStatus: %s. Payment: %s, settle at the front desk.\n\nLume Skin",
		patient.Name, appt.DoctorName, appt.Date, appt.Time, appt.Status, appt.PaymentStatus)
	n.send(ctx, templateBooked, patient, "Your Lume Skin appointment", body)
}

// BroadcastReminders emails every appointment whose patient is a stored
// user. Appointments booked by temporary identities are skipped.
func (n *Notifier) BroadcastReminders(ctx context.Context, appts []models.Appointment, users []models.User) BroadcastResult {
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		if _, ok := byID[u.ID]; !ok {
			byID[u.ID] = u
		}
	}

	var res BroadcastResult
	for _, appt := range appts {
		if ctx.Err() != nil {
			break
		}
		patient, ok := byID[appt.PatientID]
		if !ok || patient.Email == "" {
			res.Skipped++
			continue
		}
		body := fmt.Sprintf("Hi %s,\n\nA reminder of your appointment with **%s** on **%s at %s**.\n\nLume Skin",
			patient.Name, appt.DoctorName, appt.Date, appt.Time)
		if n.send(ctx, templateReminder, patient, "Appointment reminder", body) {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	n.logger.Info("reminder broadcast finished", "sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed)
	return res
}

func (n *Notifier) send(ctx context.Context, template string, to models.User, subject, markdown string) bool {
	msg := EmailMessage{
		To:       Mailbox{Address: to.Email, Name: to.Name},
		Subject:  subject,
		Text:     strings.ReplaceAll(markdown, "**", ""),
		HTML:     n.render(markdown),
		Template: template,
	}
	err := n.sender.Send(ctx, msg)
	n.metrics.ObserveEmail(template, err)
	if err != nil {
		n.logger.Warn("appointment email failed", "error", err, "template", template, "user_id", to.ID)
		return false
	}
	return true
}

func (n *Notifier) render(markdown string) string {
	var buf bytes.Buffer
	if err := n.md.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return buf.String()
}
