package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/caresched/core/metrics"
	"github.com/kilianp07/caresched/infra/logger"
)

// InfluxSink writes run events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one schedule_run point.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_run").
		AddTag("engine", ev.Engine).
		AddTag("status", ev.Status).
		AddTag("run_id", ev.RunID).
		AddField("clients", ev.Clients).
		AddField("providers", ev.Providers).
		AddField("timeslots", ev.Timeslots).
		AddField("variables", ev.Variables).
		AddField("open_variables", ev.OpenVariables).
		AddField("constraints", ev.Constraints).
		AddField("consultations", ev.Consultations).
		AddField("violations", ev.Violations).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDiagnostics writes one point per diagnostic kind.
func (s *InfluxSink) RecordDiagnostics(evs []coremetrics.DiagnosticEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ev := range evs {
		p := write.NewPointWithMeasurement("schedule_diagnostic").
			AddTag("kind", ev.Kind).
			AddTag("run_id", ev.RunID).
			AddField("count", ev.Count).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordPublish writes a schedule_publish point.
func (s *InfluxSink) RecordPublish(ev coremetrics.PublishEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_publish").
		AddTag("topic", ev.Topic).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("attempts", ev.Attempts).
		AddField("latency_ms", round3(float64(ev.Latency)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}
