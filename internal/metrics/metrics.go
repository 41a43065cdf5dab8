package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters on a private registry so tests can
// create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           prometheus.Counter
	CandidatesDetected  prometheus.Counter
	CandidatesDuplicate prometheus.Counter
	StoriesPublished    prometheus.Counter
	GenerationFailures  prometheus.Counter
	FanoutStepFailures  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsmith_pipeline_runs_total",
			Help: "Total number of pipeline runs triggered.",
		}),
		CandidatesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsmith_candidates_detected_total",
			Help: "Total number of candidates surviving the relevance threshold.",
		}),
		CandidatesDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsmith_candidates_duplicate_total",
			Help: "Total number of candidates skipped as duplicates.",
		}),
		StoriesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsmith_stories_published_total",
			Help: "Total number of stories published.",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "newsmith_generation_failures_total",
			Help: "Total number of generation calls that failed and returned a story to detected.",
		}),
		FanoutStepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsmith_fanout_step_failures_total",
			Help: "Total number of distribution fan-out step failures, partitioned by step.",
		}, []string{"step"}),
	}
}

// Handler exposes the registry for a /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
