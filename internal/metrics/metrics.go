package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the console's Prometheus collectors.
type Metrics struct {
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	BoxesConfirmed  *prometheus.CounterVec
	Logins          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plating_backend_requests_total",
			Help: "Backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plating_backend_request_seconds",
			Help:    "Backend call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		BoxesConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plating_scan_boxes_confirmed_total",
			Help: "Boxes accepted by the backend from the scan form.",
		}, []string{"kind"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plating_logins_total",
			Help: "Sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.BackendRequests, m.BackendLatency, m.BoxesConfirmed, m.Logins)
	}
	return m
}

// ObserveBackend records one backend call. Safe on a nil receiver.
func (m *Metrics) ObserveBackend(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BackendRequests.WithLabelValues(op, outcome).Inc()
	m.BackendLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// BoxConfirmed counts an accepted box. Safe on a nil receiver.
func (m *Metrics) BoxConfirmed(kind string) {
	if m == nil {
		return
	}
	m.BoxesConfirmed.WithLabelValues(kind).Inc()
}

// Login counts a sign-in attempt. Safe on a nil receiver.
func (m *Metrics) Login(method string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	m.Logins.WithLabelValues(method, outcome).Inc()
}
