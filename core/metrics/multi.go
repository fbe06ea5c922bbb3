package metrics

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the run to all sinks, returning the first error.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordDiagnostics forwards diagnostics to sinks that support them.
func (m *MultiSink) RecordDiagnostics(evs []DiagnosticEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DiagnosticRecorder); ok {
			if err := rec.RecordDiagnostics(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPublish forwards publish events to sinks that support them.
func (m *MultiSink) RecordPublish(ev PublishEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PublishRecorder); ok {
			if err := rec.RecordPublish(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
