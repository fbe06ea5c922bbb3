package metrics

import "time"

// RunEvent summarises one scheduling run.
type RunEvent struct {
	RunID         string
	Engine        string
	Status        string
	Clients       int
	Providers     int
	Timeslots     int
	Variables     int
	OpenVariables int
	Constraints   int
	Consultations int
	Violations    int
	Diagnostics   int
	Duration      time.Duration
	Time          time.Time
}

// MetricsSink records scheduling runs.
type MetricsSink interface {
	RecordRun(ev RunEvent) error
}

// DiagnosticEvent counts builder diagnostics of one kind in a run.
type DiagnosticEvent struct {
	RunID string
	Kind  string
	Count int
	Time  time.Time
}

// DiagnosticRecorder records builder diagnostics.
type DiagnosticRecorder interface {
	RecordDiagnostics(evs []DiagnosticEvent) error
}

// PublishEvent describes a schedule message sent to the broker.
type PublishEvent struct {
	Topic    string
	Attempts int
	Success  bool
	Latency  time.Duration
	Time     time.Time
}

// PublishRecorder records schedule publications.
type PublishRecorder interface {
	RecordPublish(ev PublishEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error                  { return nil }
func (NopSink) RecordDiagnostics([]DiagnosticEvent) error { return nil }
func (NopSink) RecordPublish(PublishEvent) error          { return nil }
