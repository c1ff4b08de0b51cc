package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec

	NotifyFailuresTotal *prometheus.CounterVec
	EventsRelayedTotal  prometheus.Counter

	NoShowsMarkedTotal prometheus.Counter
	WaitlistPromoted   prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector registers every metric on its own registry, so several collectors can coexist in
// one process (tests, simulations).
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Scheduling engine operations by operation and outcome.",
		}, []string{"operation", "outcome"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Scheduling engine operation latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),

		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "write_retries_total",
			Help:      "Writes retried after losing a race to a concurrent writer.",
		}, []string{"operation"}),

		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "status_transitions_total",
			Help:      "Appointment status transitions by source and target status.",
		}, []string{"from", "to"}),

		NotifyFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Notification sends that failed, by event type.",
		}, []string{"event_type"}),

		EventsRelayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_relayed_total",
			Help:      "Event log rows published to Kafka by the relay.",
		}),

		NoShowsMarkedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "no_shows_marked_total",
			Help:      "Appointments marked as no-show by the sweeper.",
		}),

		WaitlistPromoted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waitlist",
			Name:      "promotions_total",
			Help:      "Waitlist entries booked into freed slots.",
		}),

		registry: reg,
	}
}

func (c *Collector) ObserveOperation(op, outcome string, d time.Duration) {
	c.OperationsTotal.WithLabelValues(op, outcome).Inc()
	c.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) IncRetry(op string) {
	c.RetriesTotal.WithLabelValues(op).Inc()
}

func (c *Collector) IncTransition(from, to string) {
	c.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (c *Collector) IncNotifyFailure(eventType string) {
	c.NotifyFailuresTotal.WithLabelValues(eventType).Inc()
}

func (c *Collector) AddRelayed(n int) {
	c.EventsRelayedTotal.Add(float64(n))
}

func (c *Collector) AddNoShows(n int) {
	c.NoShowsMarkedTotal.Add(float64(n))
}

func (c *Collector) IncPromoted() {
	c.WaitlistPromoted.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
