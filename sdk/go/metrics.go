package trackersdk

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsNamespace = "testtracker"

// Metrics counts client traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// NewMetrics registers the client counters with reg. A nil reg creates
// unregistered counters, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "requests_total",
			Help:      "Count of API requests by endpoint and response code",
		}, []string{"method", "endpoint", "code"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "rate_limited_total",
			Help:      "Count of HTTP 429 responses",
		}, []string{"endpoint"}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "results_published_total",
			Help:      "Count of results handed to the service, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordRequest(method, endpoint string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
}

func (m *Metrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordPublished adds n results under outcome ("published", "failed", "saved").
func (m *Metrics) RecordPublished(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.published.WithLabelValues(outcome).Add(float64(n))
}
