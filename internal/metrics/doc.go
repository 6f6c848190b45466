// Package metrics collects replay and consumer measurements.
//
// # Consumer
//
// [Collector] aggregates poll round-trips on the consumer side using an
// HDR histogram:
//
//	collector := metrics.NewCollector()
//	collector.RecordPoll(latency, len(batch), err)
//	stats := collector.Stats(collector.Elapsed())
//
// [Stats] carries poll and record counts, p50/p90/p99 latency, throughput
// and failures grouped by [ErrorCategory].
//
// # Server
//
// [ReplayMetrics] is a prometheus.Collector fed by the replay service as its
// Observer, registered on a private registry and exposed by [ReplayMetrics.Handler].
// [ReplayMetrics.InstrumentHandler] wraps the batch route with request
// duration and response code instrumentation.
package metrics
