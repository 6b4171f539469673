package queue

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// DefaultRefreshInterval is how often an active view reloads the queue.
const DefaultRefreshInterval = 30 * time.Second

// View is one staff screen's copy of the queue. It loads on Activate, reloads
// on a timer while active, and applies its own mutations in place.
type View struct {
	service  *Service
	logger   *logging.Logger
	metrics  *metrics.ClinicMetrics
	interval time.Duration
	listener func([]models.Appointment)

	mu     sync.Mutex
	items  []models.Appointment
	active bool
	gen    uint64
	stop   func()
	done   chan struct{}
}

func NewView(service *Service, logger *logging.Logger) *View {
	if service == nil {
		panic("queue: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &View{service: service, logger: logger, interval: DefaultRefreshInterval}
}

func (v *View) WithInterval(d time.Duration) *View {
	if d > 0 {
		v.interval = d
	}
	return v
}

func (v *View) WithMetrics(m *metrics.ClinicMetrics) *View {
	v.metrics = m
	return v
}

// OnChange registers fn to receive the list after every load or mutation.
func (v *View) OnChange(fn func([]models.Appointment)) *View {
	v.listener = fn
	return v
}

// Activate loads the queue and starts the refresh timer. The timer runs until
// Deactivate or until ctx is cancelled.
func (v *View) Activate(ctx context.Context) error {
	v.mu.Lock()
	if v.active {
		v.mu.Unlock()
		return ErrAlreadyActive
	}
	v.active = true
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	if err := v.Refresh(ctx); err != nil {
		v.mu.Lock()
		if v.gen == gen {
			v.active = false
		}
		v.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.mu.Lock()
	if !v.active || v.gen != gen {
		// Deactivated, and possibly activated again, while the first load
		// was in flight. The newer activation owns the timer.
		v.mu.Unlock()
		cancel()
		return nil
	}
	v.stop = sync.OnceFunc(cancel)
	v.done = done
	v.mu.Unlock()

	go v.run(runCtx, done)
	return nil
}

func (v *View) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
				v.logger.Warn("queue refresh failed", "error", err)
			}
		}
	}
}

// Deactivate stops the refresh timer and waits for it to exit. Extra calls
// are no-ops.
func (v *View) Deactivate() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop, v.done = nil, nil
	v.active = false
	v.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

func (v *View) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Refresh reloads the list from the store.
func (v *View) Refresh(ctx context.Context) error {
	items, err := v.service.List(ctx)
	v.metrics.ObserveQueueRefresh(err)
	if err != nil {
		return err
	}
	v.replace(items)
	return nil
}

// Items returns the displayed list.
func (v *View) Items() []models.Appointment {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Appointment{}, v.items...)
}

func (v *View) MarkPaid(ctx context.Context, actor models.User, id string) error {
	if err := v.service.MarkPaid(ctx, actor, id); err != nil {
		return err
	}
	v.mu.Lock()
	for i := range v.items {
		if v.items[i].ID == id {
			v.items[i].PaymentStatus = models.PaymentPaid
		}
	}
	items := append([]models.Appointment{}, v.items...)
	v.mu.Unlock()
	v.notify(items)
	return nil
}

func (v *View) Remove(ctx context.Context, actor models.User, id string, confirmed bool) error {
	if err := v.service.Remove(ctx, actor, id, confirmed); err != nil {
		return err
	}
	v.mu.Lock()
	kept := v.items[:0]
	for _, a := range v.items {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	v.items = kept
	items := append([]models.Appointment{}, kept...)
	v.mu.Unlock()
	v.notify(items)
	return nil
}

func (v *View) replace(items []models.Appointment) {
	v.mu.Lock()
	v.items = append([]models.Appointment{}, items...)
	v.mu.Unlock()
	v.notify(items)
}

func (v *View) notify(items []models.Appointment) {
	if v.listener != nil {
		v.listener(items)
	}
}
