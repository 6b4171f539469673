package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lume"

// LLMLatencyMetric is the fully qualified histogram name read back by the
// admin stats snapshot.
const LLMLatencyMetric = namespace + "_assistant_llm_latency_seconds"

// ClinicMetrics exposes counters/histograms for store, booking, queue and
// assistant flows. A nil *ClinicMetrics is valid and records nothing.
type ClinicMetrics struct {
	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	bookings      *prometheus.CounterVec
	queueRefresh  *prometheus.CounterVec
	assistantJobs *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by collection operation and outcome",
		}, []string{"op", "status"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Latency of a full read-modify-write against the KV backend",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "confirmed_total",
			Help:      "Appointments created through the booking flow",
		}, []string{"doctor_id"}),
		queueRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "refresh_total",
			Help:      "Staff queue view refreshes",
		}, []string{"status"}),
		assistantJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "tasks_total",
			Help:      "Assistant tasks by kind and final state",
		}, []string{"kind", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "llm_latency_seconds",
			Help:      "Latency of generative model calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 7.5, 10, 15, 20, 30},
		}, []string{"model", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Appointment emails by template and outcome",
		}, []string{"template", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.storeOps, m.storeLatency, m.bookings, m.queueRefresh, m.assistantJobs, m.llmLatency, m.notifications)
	return m
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStore records one store operation.
func (m *ClinicMetrics) ObserveStore(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, statusLabel(err)).Inc()
	m.storeLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *ClinicMetrics) ObserveBooking(doctorID string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(doctorID).Inc()
}

func (m *ClinicMetrics) ObserveQueueRefresh(err error) {
	if m == nil {
		return
	}
	m.queueRefresh.WithLabelValues(statusLabel(err)).Inc()
}

// ObserveAssistantTask records a task reaching a terminal state.
func (m *ClinicMetrics) ObserveAssistantTask(kind, status string) {
	if m == nil {
		return
	}
	m.assistantJobs.WithLabelValues(kind, status).Inc()
}

func (m *ClinicMetrics) ObserveLLMLatency(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(model, statusLabel(err)).Observe(d.Seconds())
}

func (m *ClinicMetrics) ObserveEmail(template string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(template, statusLabel(err)).Inc()
}
