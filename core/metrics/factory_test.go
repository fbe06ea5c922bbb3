package metrics_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/caresched/core/factory"
	metrics "github.com/kilianp07/caresched/core/metrics"
	_ "github.com/kilianp07/caresched/infra/metrics"
)

func TestNewMetricsSink(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}

	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestMetricsConfigDecode(t *testing.T) {
	data := `sinks:
  - type: nop
  - type: nop
prometheus_addr: ":9100"
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if cfg.PrometheusAddr != ":9100" || len(cfg.Sinks) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	var bad metrics.Config
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &bad); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if _, err := metrics.NewMetricsSink(bad.Sinks); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
