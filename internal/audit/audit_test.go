package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

var staff = models.User{ID: "s1", Name: "Sam", Role: models.RoleStaff, Email: "sam@derma.com"}

func TestRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)
	event := NewEvent(ActionAppointmentPaid, staff, "a1", map[string]string{"paymentStatus": "PAID"})

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "appointment.paid", "s1", "STAFF", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.Record(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(errors.New("db down"))
	err = NewService(db).Record(context.Background(), Event{Action: ActionProductUpdated})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "audit: insert event")
}

func TestQueryWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	created := since.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "action", "actor_id", "actor_role", "target_id", "details", "created_at"}).
		AddRow("e1", "appointment.removed", "s1", "STAFF", "a9", []byte(`{"confirmed":true}`), created).
		AddRow("e2", "appointment.paid", "s1", "STAFF", nil, []byte(`{}`), since)

	mock.ExpectQuery(`SELECT id, action, actor_id, actor_role, target_id, details, created_at\s+FROM audit_events`).
		WithArgs(sqlmock.AnyArg(), "s1", since).
		WillReturnRows(rows)

	events, err := NewService(db).Query(context.Background(), Filter{
		Actions: []Action{ActionAppointmentRemoved, ActionAppointmentPaid},
		ActorID: "s1",
		Since:   since,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionAppointmentRemoved, events[0].Action)
	assert.Equal(t, "a9", events[0].TargetID)
	assert.JSONEq(t, `{"confirmed":true}`, string(events[0].Details))
	assert.Empty(t, events[1].TargetID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEventDetails(t *testing.T) {
	e := NewEvent(ActionRemindersSent, staff, "", map[string]int{"sent": 2})
	var details map[string]int
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, 2, details["sent"])
	assert.NoError(t, Nop{}.Record(context.Background(), e))
}
