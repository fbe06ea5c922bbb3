// Package metrics defines the sinks that observe scheduling runs. A sink
// implements MetricsSink and may implement the optional recorder interfaces;
// MultiSink forwards each event to the sinks that support it. Concrete sinks
// (Prometheus, InfluxDB) register themselves from infra/metrics.
package metrics
