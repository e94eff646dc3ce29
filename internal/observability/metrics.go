package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hab_status"

// Metrics holds the Prometheus counters, histograms, and gauges for the status pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,publish_error,fetch_error,registry_error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	SamplesFetched prometheus.Counter
	SamplesMatched prometheus.Counter
	FetchRetries   prometheus.Counter

	// Status metrics.
	Statuses         *prometheus.GaugeVec // labels: kind={beach,city,region}, tier={no_data,safe,caution,avoid}
	StatusesWithheld prometheus.Counter
	PublishErrors    *prometheus.CounterVec // labels: sink
	PublishDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.SamplesFetched,
		m.SamplesMatched,
		m.FetchRetries,
		m.Statuses,
		m.StatusesWithheld,
		m.PublishErrors,
		m.PublishDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Evaluation runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-evaluate-publish run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		SamplesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_fetched_total",
			Help:      "Total samples read from the HAB data source.",
		}),
		SamplesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_matched_total",
			Help:      "Total site readings that contributed to a beach status.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retried requests to the HAB data source.",
		}),
		Statuses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations",
			Help:      "Locations per tier in the latest snapshot.",
		}, []string{"kind", "tier"}),
		StatusesWithheld: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statuses_withheld_total",
			Help:      "Statuses not published because their confidence was below the threshold.",
		}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed snapshot publishes by sink.",
		}, []string{"sink"}),
		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Snapshot publish duration by sink.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"sink"}),
	}
}
