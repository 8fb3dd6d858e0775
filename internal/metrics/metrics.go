package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "profile"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op sink.
type Metrics struct {
	sessionsCreated    *prometheus.CounterVec
	answersRecorded    *prometheus.CounterVec
	sessionsCompleted  *prometheus.CounterVec
	sessionsFinalized  *prometheus.CounterVec
	reliabilityFlags   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
}

// MustNew registers the collectors with reg, reusing collectors that are
// already registered under the same name. Other registration errors panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created, by assessment and format.",
		}, []string{"assessment", "format"}),
		answersRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_recorded_total",
			Help:      "Rankings accepted from candidates.",
		}, []string{"assessment"}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Sessions whose last question was answered.",
		}, []string{"assessment"}),
		sessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finalized_total",
			Help:      "Finalizer outcomes for completed sessions.",
		}, []string{"outcome"}),
		reliabilityFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reliability_flags_total",
			Help:      "Reliability warnings raised by evaluations.",
		}, []string{"flag"}),
		evaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating a session snapshot.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}, []string{"assessment"}),
	}

	m.sessionsCreated = register(reg, m.sessionsCreated)
	m.answersRecorded = register(reg, m.answersRecorded)
	m.sessionsCompleted = register(reg, m.sessionsCompleted)
	m.sessionsFinalized = register(reg, m.sessionsFinalized)
	m.reliabilityFlags = register(reg, m.reliabilityFlags)
	m.evaluationDuration = register(reg, m.evaluationDuration)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) SessionCreated(assessment, format string) {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(assessment, format).Inc()
}

func (m *Metrics) AnswerRecorded(assessment string) {
	if m == nil {
		return
	}
	m.answersRecorded.WithLabelValues(assessment).Inc()
}

func (m *Metrics) SessionCompleted(assessment string) {
	if m == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(assessment).Inc()
}

// SessionFinalized counts finalizer outcomes ("finalized", "failed").
func (m *Metrics) SessionFinalized(outcome string) {
	if m == nil {
		return
	}
	m.sessionsFinalized.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncReliabilityFlag(flag string) {
	if m == nil {
		return
	}
	m.reliabilityFlags.WithLabelValues(flag).Inc()
}

func (m *Metrics) ObserveEvaluation(assessment string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluationDuration.WithLabelValues(assessment).Observe(d.Seconds())
}
