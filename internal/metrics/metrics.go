// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the pipeline's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry           *prometheus.Registry
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	ListingsTotal      *prometheus.CounterVec
	DropsTotal         *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	BrowserAcquires    prometheus.Counter
}

// New registers all collectors, plus the Go and process collectors, on a
// dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offnbuy_runs_total",
			Help: "Pipeline invocations by source and status.",
		},
		[]string{"source", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offnbuy_run_duration_seconds",
			Help:    "Wall time of completed pipeline runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)
	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offnbuy_listings_total",
			Help: "Harvested listings by outcome (stored, updated, skipped, dropped).",
		},
		[]string{"source", "outcome"},
	)
	drops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offnbuy_listing_drops_total",
			Help: "Listings dropped, by the stage that dropped them.",
		},
		[]string{"stage"},
	)
	notifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offnbuy_notifications_total",
			Help: "Notification deliveries by channel and result.",
		},
		[]string{"channel", "result"},
	)
	acquires := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offnbuy_browser_acquires_total",
			Help: "Browser sessions acquired for pipeline runs.",
		},
	)

	registry.MustRegister(
		runs, runDuration, listings, drops, notifications, acquires,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:           registry,
		RunsTotal:          runs,
		RunDuration:        runDuration,
		ListingsTotal:      listings,
		DropsTotal:         drops,
		NotificationsTotal: notifications,
		BrowserAcquires:    acquires,
	}
}

// ObserveRun records one invocation. Skipped runs carry no duration.
func (m *Metrics) ObserveRun(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(source, status).Inc()
	if d > 0 {
		m.RunDuration.WithLabelValues(source).Observe(d.Seconds())
	}
}

func (m *Metrics) AddListings(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ListingsTotal.WithLabelValues(source, outcome).Add(float64(n))
}

func (m *Metrics) IncDrop(stage string) {
	if m == nil {
		return
	}
	m.DropsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncNotification(channel, result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) IncBrowserAcquire() {
	if m == nil {
		return
	}
	m.BrowserAcquires.Inc()
}
