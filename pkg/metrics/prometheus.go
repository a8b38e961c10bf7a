package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements the domain Metrics interface on a Prometheus registry.
type Recorder struct {
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rowsDropped *prometheus.CounterVec
	candidates  prometheus.Histogram
	stale       prometheus.Counter
}

// New creates a recorder and registers its collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealsignal_errors_total",
				Help: "Total number of errors encountered, by kind",
			},
			[]string{"kind"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mealsignal_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		rowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealsignal_rows_dropped_total",
				Help: "Source rows skipped because a timestamp or value did not parse",
			},
			[]string{"source"},
		),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mealsignal_candidates",
			Help:    "Number of candidate meals ranked per request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mealsignal_stale_results_total",
			Help: "Results discarded because a newer request superseded them",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.errorsTotal, r.latency, r.rowsDropped, r.candidates, r.stale)
	}
	return r
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records stage latency.
func (r *Recorder) RecordLatency(stage string, d time.Duration) {
	r.latency.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RecordRowsDropped(source string, n int) {
	r.rowsDropped.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) RecordCandidates(n int) {
	r.candidates.Observe(float64(n))
}

func (r *Recorder) RecordStale() {
	r.stale.Inc()
}
