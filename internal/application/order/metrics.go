package order

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the RED-style instruments shared by the saga service and
// the consumer. Supplied via DI; a nil *Metrics disables recording.
type Metrics struct {
	requests *prometheus.CounterVec   // usecase_requests_total{use_case,outcome}
	duration *prometheus.HistogramVec // usecase_duration_seconds{use_case}
	messages *prometheus.CounterVec   // consumer_messages_total{result}
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usecase_requests_total",
				Help: "Total number of use case invocations.",
			},
			[]string{"use_case", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usecase_duration_seconds",
				Help:    "Duration of use case execution in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"use_case"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consumer_messages_total",
				Help: "Messages seen by the event consumer, by handling result.",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.messages)
	}
	return m
}

func (m *Metrics) observe(useCase, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(useCase, outcome).Inc()
	m.duration.WithLabelValues(useCase).Observe(seconds)
}

func (m *Metrics) message(result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(result).Inc()
}
