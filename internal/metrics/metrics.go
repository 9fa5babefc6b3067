// Package metrics exposes Prometheus collectors for the comment service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alphabot-ai/perch/internal/mint"
)

const namespace = "perch"

// Metrics holds every collector, registered on its own registry so several
// servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	ChallengesTotal    prometheus.Counter
	ProblemsIssued     prometheus.Counter
	SolutionsTotal     *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec

	CommentsTotal    *prometheus.CounterVec
	ModerationsTotal *prometheus.CounterVec
	AvatarsTotal     *prometheus.CounterVec
	EmailsTotal      *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChallengesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mint",
			Name: "challenges_total",
			Help: "Challenges issued",
		}),
		ProblemsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mint",
			Name: "problems_total",
			Help: "Problems issued across all challenges",
		}),
		SolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mint",
			Name: "solutions_total",
			Help: "Submitted solutions by outcome",
		}, []string{"result"}),
		VerificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mint",
			Name: "verifications_total",
			Help: "Solution batches verified by outcome",
		}, []string{"result"}),

		CommentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Comment submissions by outcome",
		}, []string{"result"}),
		ModerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderations_total",
			Help:      "Moderation actions by action and outcome",
		}, []string{"action", "result"}),
		AvatarsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "avatars_total",
			Help:      "Avatar lookups by source",
		}, []string{"source"}),
		EmailsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Notification emails by outcome",
		}, []string{"result"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http",
			Name: "requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http",
			Name:    "request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ChallengeIssued(problems int) {
	m.ChallengesTotal.Inc()
	m.ProblemsIssued.Add(float64(problems))
}

func (m *Metrics) SolutionDiscarded(reason mint.Reason) {
	m.SolutionsTotal.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) SolutionAccepted() {
	m.SolutionsTotal.WithLabelValues("accepted").Inc()
}

func (m *Metrics) Verified(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

var _ mint.Observer = (*Metrics)(nil)

func (m *Metrics) AvatarServed(source string) {
	m.AvatarsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) EmailSent(ok bool) {
	result := "failed"
	if ok {
		result = "sent"
	}
	m.EmailsTotal.WithLabelValues(result).Inc()
}
