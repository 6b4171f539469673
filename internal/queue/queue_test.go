package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/store"
)

var staff = models.User{ID: "s1", Name: "Sam", Role: models.RoleStaff, Email: "sam@derma.com"}

func appointment(id string) models.Appointment {
	return models.Appointment{
		ID: id, PatientID: "p1", PatientName: "Pat", DoctorID: "d1", DoctorName: "Dr. Sarah Smith",
		Date: "2025-03-01", Time: "9:00 AM", Status: models.StatusPending, PaymentStatus: models.PaymentUnpaid,
	}
}

func seededStore(t *testing.T, ids ...string) *store.Store {
	t.Helper()
	s := store.New(kv.NewMemoryBackend())
	require.NoError(t, s.Init(context.Background()))
	for _, id := range ids {
		require.NoError(t, s.SaveAppointment(context.Background(), appointment(id)))
	}
	return s
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Record(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []events.Type
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	s := seededStore(t, "a1", "a2")
	auditor := &recordingAuditor{}
	publisher := &recordingPublisher{}
	svc := NewService(s, WithAuditor(auditor), WithPublisher(publisher))
	ctx := context.Background()

	require.NoError(t, svc.MarkPaid(ctx, staff, "a1"))
	once, err := svc.List(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(ctx, staff, "a1"))
	twice, err := svc.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, models.PaymentPaid, twice[0].PaymentStatus)
	assert.Equal(t, models.PaymentUnpaid, twice[1].PaymentStatus)
	require.Len(t, auditor.events, 1, "repeat payment records nothing")
	assert.Equal(t, audit.ActionAppointmentPaid, auditor.events[0].Action)
	assert.Equal(t, "s1", auditor.events[0].ActorID)
	assert.Equal(t, []events.Type{events.AppointmentPaid}, publisher.types)
}

func TestUnknownAppointmentLeavesNoTrail(t *testing.T) {
	s := seededStore(t, "a1")
	auditor := &recordingAuditor{}
	publisher := &recordingPublisher{}
	svc := NewService(s, WithAuditor(auditor), WithPublisher(publisher))
	ctx := context.Background()

	require.NoError(t, svc.MarkPaid(ctx, staff, "ghost"))
	require.NoError(t, svc.Remove(ctx, staff, "ghost", true))
	assert.Empty(t, auditor.events)
	assert.Empty(t, publisher.types)

	require.NoError(t, svc.Remove(ctx, staff, "a1", true))
	require.NoError(t, svc.Remove(ctx, staff, "a1", true))
	require.Len(t, auditor.events, 1)
	assert.Equal(t, audit.ActionAppointmentRemoved, auditor.events[0].Action)
	assert.Equal(t, []events.Type{events.AppointmentRemoved}, publisher.types)
}

func TestRemoveRequiresConfirmation(t *testing.T) {
	s := seededStore(t, "a1", "a2", "a3")
	svc := NewService(s)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Remove(ctx, staff, "a2", false), ErrConfirmationRequired)
	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, svc.Remove(ctx, staff, "a2", true))
	all, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a1", all[0].ID)
	assert.Equal(t, "a3", all[1].ID)

	require.NoError(t, svc.Remove(ctx, staff, "a2", true), "repeat removal is a no-op")
	again, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

func TestFind(t *testing.T) {
	svc := NewService(seededStore(t, "a1"))
	got, err := svc.Find(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	_, err = svc.Find(context.Background(), "zz")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestViewActivateLoadsAndRejectsSecondActivation(t *testing.T) {
	svc := NewService(seededStore(t, "a1"))
	view := NewView(svc, nil).WithInterval(time.Hour)
	ctx := context.Background()

	require.NoError(t, view.Activate(ctx))
	defer view.Deactivate()
	assert.True(t, view.Active())
	assert.Len(t, view.Items(), 1)

	assert.ErrorIs(t, view.Activate(ctx), ErrAlreadyActive)
}

func TestViewRefreshesUntilDeactivated(t *testing.T) {
	s := seededStore(t, "a1")
	var loads atomic.Int32
	view := NewView(NewService(s), nil).
		WithInterval(5 * time.Millisecond).
		OnChange(func([]models.Appointment) { loads.Add(1) })

	require.NoError(t, view.Activate(context.Background()))
	require.NoError(t, s.SaveAppointment(context.Background(), appointment("a2")))

	require.Eventually(t, func() bool { return len(view.Items()) == 2 }, time.Second, 5*time.Millisecond)

	view.Deactivate()
	view.Deactivate()
	assert.False(t, view.Active())

	settled := loads.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, loads.Load(), "no refreshes after deactivation")
}

func TestViewStopsWhenContextCancelled(t *testing.T) {
	var loads atomic.Int32
	view := NewView(NewService(seededStore(t)), nil).
		WithInterval(2 * time.Millisecond).
		OnChange(func([]models.Appointment) { loads.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, view.Activate(ctx))
	cancel()
	view.Deactivate()

	settled := loads.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, loads.Load())
}

func TestViewLocalMutations(t *testing.T) {
	svc := NewService(seededStore(t, "a1", "a2"))
	view := NewView(svc, nil).WithInterval(time.Hour)
	ctx := context.Background()
	require.NoError(t, view.Activate(ctx))
	defer view.Deactivate()

	require.NoError(t, view.MarkPaid(ctx, staff, "a2"))
	assert.Equal(t, models.PaymentPaid, view.Items()[1].PaymentStatus)

	assert.ErrorIs(t, view.Remove(ctx, staff, "a1", false), ErrConfirmationRequired)
	require.NoError(t, view.Remove(ctx, staff, "a1", true))
	items := view.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a2", items[0].ID)
}

type brokenStore struct{}

func (brokenStore) Appointments(context.Context) ([]models.Appointment, error) {
	return nil, errors.New("backend down")
}
func (brokenStore) UpdateAppointment(context.Context, string, models.AppointmentPatch) error {
	return nil
}
func (brokenStore) DeleteAppointment(context.Context, string) error { return nil }

func TestViewActivateFailureLeavesInactive(t *testing.T) {
	view := NewView(NewService(brokenStore{}), nil)
	require.Error(t, view.Activate(context.Background()))
	assert.False(t, view.Active())
	view.Deactivate()
}

// gatedStore blocks the first Appointments call until release is closed.
type gatedStore struct {
	*store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (g *gatedStore) Appointments(ctx context.Context) ([]models.Appointment, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	g.calls.Add(1)
	return g.Store.Appointments(ctx)
}

func TestViewStaleActivationDoesNotLeakRefresher(t *testing.T) {
	gated := &gatedStore{
		Store:   seededStore(t, "a1"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	view := NewView(NewService(gated), nil).WithInterval(2 * time.Millisecond)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- view.Activate(ctx) }()
	<-gated.entered

	view.Deactivate()
	require.NoError(t, view.Activate(ctx))
	close(gated.release)
	require.NoError(t, <-slow)
	assert.True(t, view.Active())

	view.Deactivate()
	assert.False(t, view.Active())

	settled := gated.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, gated.calls.Load(), "no refreshes after deactivation")
}
