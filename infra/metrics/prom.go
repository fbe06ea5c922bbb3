package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/caresched/core/metrics"
)

// PromSink records scheduling runs in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	variables   prometheus.Gauge
	constraints prometheus.Gauge
	scheduled   prometheus.Gauge
	violations  prometheus.Counter
	diagnostics *prometheus.CounterVec
	publishes   *prometheus.CounterVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_runs_total",
		Help: "Scheduling runs by engine and outcome status",
	}, []string{"engine", "status"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_run_duration_seconds",
		Help:    "Wall time of a scheduling run, build to verification",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"engine"})); err != nil {
		return nil, err
	}
	if s.variables, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_model_variables",
		Help: "Decision and auxiliary variables of the last model",
	})); err != nil {
		return nil, err
	}
	if s.constraints, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_model_constraints",
		Help: "Constraints of the last model",
	})); err != nil {
		return nil, err
	}
	if s.scheduled, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_consultations",
		Help: "Consultations in the last schedule",
	})); err != nil {
		return nil, err
	}
	if s.violations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_verification_violations_total",
		Help: "Invariant violations found when verifying solver output",
	})); err != nil {
		return nil, err
	}
	if s.diagnostics, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_diagnostics_total",
		Help: "Builder diagnostics by kind",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.publishes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_publish_total",
		Help: "Schedule messages sent to the broker",
	}, []string{"success"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates counters and last-run gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Engine, ev.Status).Inc()
	s.duration.WithLabelValues(ev.Engine).Observe(ev.Duration.Seconds())
	s.variables.Set(float64(ev.Variables))
	s.constraints.Set(float64(ev.Constraints))
	s.scheduled.Set(float64(ev.Consultations))
	if ev.Violations > 0 {
		s.violations.Add(float64(ev.Violations))
	}
	return nil
}

// RecordDiagnostics counts diagnostics per kind.
func (s *PromSink) RecordDiagnostics(evs []coremetrics.DiagnosticEvent) error {
	for _, ev := range evs {
		s.diagnostics.WithLabelValues(ev.Kind).Add(float64(ev.Count))
	}
	return nil
}

// RecordPublish counts broker publications.
func (s *PromSink) RecordPublish(ev coremetrics.PublishEvent) error {
	s.publishes.WithLabelValues(strconv.FormatBool(ev.Success)).Inc()
	return nil
}
