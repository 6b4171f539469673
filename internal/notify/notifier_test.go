package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []EmailMessage
	fail map[string]bool
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[msg.To.Address] {
		return errors.New("mailbox unavailable")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func bookedAppointment() models.Appointment {
	return models.Appointment{
		ID: "a1", PatientID: "p1", PatientName: "Ana", DoctorID: "d1", DoctorName: "Dr. Sarah Smith",
		Date: "2026-11-02", Time: "09:00 AM", Status: models.StatusPending, PaymentStatus: models.PaymentUnpaid,
	}
}

func TestNotifyBooked_RendersMarkdown(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, metrics.NewClinicMetrics(prometheus.NewRegistry()), nil)

	n.NotifyBooked(context.Background(), bookedAppointment(), models.User{ID: "p1", Name: "Ana", Email: "ana@example.com"})

	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "ana@example.com", msg.To.Address)
	assert.Equal(t, templateBooked, msg.Template)
	assert.Contains(t, msg.HTML, "<strong>Dr. Sarah Smith</strong>")
	assert.NotContains(t, msg.Text, "**")
	assert.Contains(t, msg.Text, "2026-11-02 at 09:00 AM")
}

func TestNotifyBooked_SkipsWithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	NewNotifier(sender, nil, nil).NotifyBooked(context.Background(), bookedAppointment(), models.User{ID: "temp-1"})
	assert.Empty(t, sender.msgs)
}

func TestBroadcastReminders(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"bo@example.com": true}}
	n := NewNotifier(sender, nil, nil)

	a1 := bookedAppointment()
	a2 := bookedAppointment()
	a2.ID, a2.PatientID = "a2", "temp-123"
	a3 := bookedAppointment()
	a3.ID, a3.PatientID = "a3", "p2"

	users := []models.User{
		{ID: "p1", Name: "Ana", Email: "ana@example.com"},
		{ID: "p2", Name: "Bo", Email: "bo@example.com"},
	}

	res := n.BroadcastReminders(context.Background(), []models.Appointment{a1, a2, a3}, users)
	assert.Equal(t, BroadcastResult{Sent: 1, Skipped: 1, Failed: 1}, res)
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, "Appointment reminder", sender.msgs[0].Subject)
}

func TestNewNotifier_NilSenderFallsBackToLogSender(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	res := n.BroadcastReminders(context.Background(), []models.Appointment{bookedAppointment()}, []models.User{{ID: "p1", Email: "ana@example.com"}})
	assert.Equal(t, 1, res.Sent)
}
