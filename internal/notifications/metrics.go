package notifications

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for scheduler runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec   // runs by source and status (ok, error)
	NotificationsTotal *prometheus.CounterVec   // per-item outcomes by kind
	RunDuration        *prometheus.HistogramVec // run latency by source
}

// NewMetrics creates and registers the scheduler collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freshtrack_notification_runs_total",
				Help: "Notification scheduler runs by trigger source and status",
			},
			[]string{"trigger", "status"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freshtrack_notifications_total",
				Help: "Per-item scheduler outcomes by threshold kind",
			},
			[]string{"kind", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freshtrack_notification_run_duration_seconds",
				Help:    "Time taken by one notification scheduler run",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"trigger"},
		),
	}
	for _, c := range []prometheus.Collector{m.RunsTotal, m.NotificationsTotal, m.RunDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register notification metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(source Source, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(string(source), status).Inc()
	m.RunDuration.WithLabelValues(string(source)).Observe(d.Seconds())
}

func (m *Metrics) observeItem(o outcome) {
	if m == nil || o.status == statusAborted {
		return
	}
	kind := string(o.kind)
	if kind == "" {
		kind = "none"
	}
	m.NotificationsTotal.WithLabelValues(kind, string(o.status)).Inc()
}
