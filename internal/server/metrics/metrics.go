// Package metrics exposes Prometheus collectors for the engines on a
// dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophsocial"

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing, so engines can be built without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	FollowToggles  *prometheus.CounterVec
	FollowRepairs  *prometheus.CounterVec
	LikeToggles    *prometheus.CounterVec
	CommentOps     *prometheus.CounterVec
	CascadeSteps   *prometheus.CounterVec
	CascadeSeconds prometheus.Histogram
	HTTPRequests   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FollowToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_toggles_total",
			Help:      "Follow toggles by resulting state.",
		}, []string{"state"}),
		FollowRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_repairs_total",
			Help:      "Second-side follow writes that needed a retry or a compensation.",
		}, []string{"outcome"}),
		LikeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting state.",
		}, []string{"state"}),
		CommentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_operations_total",
			Help:      "Comment mutations by operation.",
		}, []string{"op"}),
		CascadeSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_steps_total",
			Help:      "Account deletion sub-steps by step and status.",
		}, []string{"step", "status"}),
		CascadeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_duration_seconds",
			Help:      "Wall time of account deletions.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.FollowToggles, m.FollowRepairs, m.LikeToggles, m.CommentOps,
		m.CascadeSteps, m.CascadeSeconds, m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Follow(state string) {
	if m != nil {
		m.FollowToggles.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) FollowRepair(outcome string) {
	if m != nil {
		m.FollowRepairs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Like(liked bool) {
	if m == nil {
		return
	}
	state := "unliked"
	if liked {
		state = "liked"
	}
	m.LikeToggles.WithLabelValues(state).Inc()
}

func (m *Metrics) Comment(op string) {
	if m != nil {
		m.CommentOps.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) CascadeStep(step, status string) {
	if m != nil {
		m.CascadeSteps.WithLabelValues(step, status).Inc()
	}
}

func (m *Metrics) CascadeDuration(seconds float64) {
	if m != nil {
		m.CascadeSeconds.Observe(seconds)
	}
}

func (m *Metrics) Request(route, code string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, code).Inc()
	}
}
