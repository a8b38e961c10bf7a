package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Endpoint tracks latency and failures of the API handlers.
type Endpoint struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

func NewEndpoint(reg prometheus.Registerer) *Endpoint {
	e := &Endpoint{
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mealsignal",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of API endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mealsignal",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Errors by API endpoint and error code",
			},
			[]string{"endpoint", "code"},
		),
	}
	if reg != nil {
		reg.MustRegister(e.latency, e.errors)
	}
	return e
}

// Observe records one call. Nil receivers are ignored so handlers work without metrics.
func (e *Endpoint) Observe(endpoint string, start time.Time) {
	if e == nil {
		return
	}
	e.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (e *Endpoint) Fail(endpoint, code string) {
	if e == nil {
		return
	}
	e.errors.WithLabelValues(endpoint, code).Inc()
}
