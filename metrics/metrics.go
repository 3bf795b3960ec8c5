// Package metrics exposes Prometheus collectors for ingestion and retrieval.
//
// A Registry satisfies ingestion.Observer and retrieval.Monitor, so the
// pipelines report to it without importing this package.
package metrics

import (
	"net/http"
	"time"

	"github.com/poiesic/profmatch/ingestion"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "profmatch"

// Registry owns a private Prometheus registry and the collectors recorded into it.
type Registry struct {
	reg *prometheus.Registry

	submissions   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	questions     *prometheus.CounterVec
	hits          prometheus.Histogram
	generation    *prometheus.HistogramVec
}

// New creates a registry with all collectors registered.
// Process and Go runtime collectors are included.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "submissions_total",
			Help:      "Finished ingestion submissions by terminal stage and failing stage.",
		}, []string{"result", "stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each ingestion stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetches_in_flight",
			Help:      "Pages currently being fetched.",
		}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "questions_total",
			Help:      "Answered questions by result.",
		}, []string{"result"}),
		hits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "hits",
			Help:      "Number of records retrieved per question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "answer",
			Name:      "generation_duration_seconds",
			Help:      "Time from prompt submission to end of stream.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.submissions,
		r.stageDuration,
		r.inFlight,
		r.questions,
		r.hits,
		r.generation,
	)
	return r
}

// Gatherer returns the underlying registry for scraping or testing.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StageStarted implements ingestion.Observer.
func (r *Registry) StageStarted(_ string, stage ingestion.Stage) {
	if stage == ingestion.StageFetching {
		r.inFlight.Inc()
	}
}

// StageFinished implements ingestion.Observer.
func (r *Registry) StageFinished(_ string, stage ingestion.Stage, elapsed time.Duration, err error) {
	if stage == ingestion.StageFetching {
		r.inFlight.Dec()
	}
	r.stageDuration.WithLabelValues(string(stage), result(err)).Observe(elapsed.Seconds())
}

// Finished implements ingestion.Observer.
func (r *Registry) Finished(o *ingestion.Outcome) {
	if o.Succeeded() {
		r.submissions.WithLabelValues("done", "").Inc()
		return
	}
	r.submissions.WithLabelValues("failed", string(o.Err.Stage)).Inc()
}

// Retrieved implements retrieval.Monitor.
func (r *Registry) Retrieved(hits int, _ time.Duration, err error) {
	if err != nil {
		r.questions.WithLabelValues("retrieval_error").Inc()
		return
	}
	r.hits.Observe(float64(hits))
}

// Generated implements retrieval.Monitor.
func (r *Registry) Generated(elapsed time.Duration, err error) {
	r.generation.WithLabelValues(result(err)).Observe(elapsed.Seconds())
	if err != nil {
		r.questions.WithLabelValues("generation_error").Inc()
		return
	}
	r.questions.WithLabelValues("answered").Inc()
}
