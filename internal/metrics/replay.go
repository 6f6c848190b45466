package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/streamsim/internal/replay"
)

const metricsNamespace = "streamsim"

// ReplayMetrics is a prometheus.Collector for the replay server. It
// satisfies replay.Observer.
type ReplayMetrics struct {
	registry *prometheus.Registry

	batchesServed   prometheus.Counter
	recordsServed   prometheus.Counter
	cursorWraps     prometheus.Counter
	requestFailures prometheus.Counter
	datasetLoads    *prometheus.CounterVec
	loadDuration    prometheus.Histogram
	datasetRecords  prometheus.Gauge
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

var _ replay.Observer = (*ReplayMetrics)(nil)

// NewReplayMetrics returns ReplayMetrics registered, together with the Go
// runtime and process collectors, on a private registry.
func NewReplayMetrics() *ReplayMetrics {
	m := &ReplayMetrics{
		registry: prometheus.NewRegistry(),
		batchesServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batches_served_total",
				Help:      "The number of batches returned to consumers.",
			},
		),
		recordsServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "records_served_total",
				Help:      "The number of records returned to consumers.",
			},
		),
		cursorWraps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cursor_wraps_total",
				Help:      "The number of times the cursor returned to the start of the dataset.",
			},
		),
		requestFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batch_request_failures_total",
				Help:      "The number of batch requests answered with an error.",
			},
		),
		datasetLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dataset_loads_total",
				Help:      "The number of dataset loads by result.",
			}, []string{"result"},
		),
		loadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "dataset_load_duration_seconds",
				Help:      "The time taken to load the dataset from its source.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
		datasetRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "dataset_records",
				Help:      "The number of records in the most recently loaded dataset.",
			},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "The latency of batch requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"code", "method"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "The number of batch requests by response code.",
			}, []string{"code", "method"},
		),
	}
	m.registry.MustRegister(
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Describe is part of the prometheus.Collector interface.
func (m *ReplayMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.batchesServed.Describe(ch)
	m.recordsServed.Describe(ch)
	m.cursorWraps.Describe(ch)
	m.requestFailures.Describe(ch)
	m.datasetLoads.Describe(ch)
	m.loadDuration.Describe(ch)
	m.datasetRecords.Describe(ch)
	m.requestDuration.Describe(ch)
	m.requestsTotal.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *ReplayMetrics) Collect(ch chan<- prometheus.Metric) {
	m.batchesServed.Collect(ch)
	m.recordsServed.Collect(ch)
	m.cursorWraps.Collect(ch)
	m.requestFailures.Collect(ch)
	m.datasetLoads.Collect(ch)
	m.loadDuration.Collect(ch)
	m.datasetRecords.Collect(ch)
	m.requestDuration.Collect(ch)
	m.requestsTotal.Collect(ch)
}

// DatasetLoaded is part of the replay.Observer interface.
func (m *ReplayMetrics) DatasetLoaded(records int, elapsed time.Duration, err error) {
	m.loadDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.datasetLoads.WithLabelValues("error").Inc()
		return
	}
	m.datasetLoads.WithLabelValues("ok").Inc()
	m.datasetRecords.Set(float64(records))
}

// BatchServed is part of the replay.Observer interface.
func (m *ReplayMetrics) BatchServed(batch replay.Batch) {
	m.batchesServed.Inc()
	m.recordsServed.Add(float64(len(batch.Records)))
	if batch.Wrapped {
		m.cursorWraps.Inc()
	}
}

// RequestFailed counts a batch request that could not be answered.
func (m *ReplayMetrics) RequestFailed() {
	m.requestFailures.Inc()
}

// Registry exposes the private registry.
func (m *ReplayMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ReplayMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InstrumentHandler records duration and response codes of next.
func (m *ReplayMetrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(m.requestDuration,
		promhttp.InstrumentHandlerCounter(m.requestsTotal, next))
}
