// Package metrics records retrieval activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// Recorder implements retrieval.Observer.
type Recorder struct {
	queries    *prometheus.CounterVec
	candidates *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	results    *prometheus.HistogramVec
}

var _ retrieval.Observer = (*Recorder)(nil)

// NewRecorder registers the retrieval metrics with reg. A nil reg uses the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sif_queries_total",
				Help: "Total number of queries by route",
			},
			[]string{"route"},
		),
		candidates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sif_candidates_total",
				Help: "Corpus items evaluated by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sif_query_duration_seconds",
				Help:    "Query duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
			},
			[]string{"route"},
		),
		results: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sif_results_returned",
				Help:    "Number of ranked results per query",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"route"},
		),
	}
}

func (r *Recorder) QueryStarted(route retrieval.Route) {
	r.queries.WithLabelValues(route.String()).Inc()
}

func (r *Recorder) CandidateEvaluated(route retrieval.Route, outcome retrieval.Outcome) {
	r.candidates.WithLabelValues(route.String(), string(outcome)).Inc()
}

func (r *Recorder) QueryFinished(route retrieval.Route, results int, elapsed time.Duration) {
	r.duration.WithLabelValues(route.String()).Observe(elapsed.Seconds())
	r.results.WithLabelValues(route.String()).Observe(float64(results))
}
