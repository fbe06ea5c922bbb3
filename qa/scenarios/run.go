package scenarios

import (
	"context"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/infra/logger"
	"github.com/kilianp07/caresched/infra/metrics"
	"github.com/kilianp07/caresched/infra/solver/pseudobool"
	"github.com/kilianp07/caresched/infra/solver/simplex"
)

func engines(names []string) []solver.Engine {
	all := []solver.Engine{pseudobool.New(logger.NopLogger{}), simplex.New(simplex.Config{})}
	if len(names) == 0 {
		return all
	}
	return lo.Filter(all, func(e solver.Engine, _ int) bool { return lo.Contains(names, e.Name()) })
}

func RunScenario(t *testing.T, sc *Scenario) {
	grid, err := sc.Grid.Build()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	weights := schedule.DefaultWeights()
	if sc.Weights != nil {
		weights = *sc.Weights
	}
	for _, eng := range engines(sc.Engines) {
		t.Run(eng.Name(), func(t *testing.T) {
			reg := prometheus.NewRegistry()
			sink, err := metrics.NewPromSinkWithRegistry(reg)
			if err != nil {
				t.Fatalf("prom sink: %v", err)
			}
			s := schedule.New(grid, eng, schedule.Config{Policy: sc.QuotaPolicy, Weights: weights},
				schedule.WithMetrics(sink))
			out, err := s.Run(context.Background(), sc.Dataset)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			check(t, sc, out)
			if n, err := testutil.GatherAndCount(reg, "schedule_runs_total"); err != nil || n != 1 {
				t.Errorf("schedule_runs_total series = %d, err %v", n, err)
			}
		})
	}
}

func check(t *testing.T, sc *Scenario, out schedule.Outcome) {
	t.Helper()
	if got := out.Status.String(); got != sc.Expected.Status {
		t.Errorf("scenario %s expected status %s, got %s", sc.Name, sc.Expected.Status, got)
	}
	var cons []model.Consultation
	if out.Schedule != nil {
		cons = out.Schedule.Consultations
	}
	if len(cons) != sc.Expected.Consultations {
		t.Errorf("scenario %s expected %d consultations, got %d", sc.Name, sc.Expected.Consultations, len(cons))
	}
	if len(out.Violations) > 0 {
		t.Errorf("scenario %s violations: %v", sc.Name, out.Violations)
	}
	kinds := lo.Uniq(lo.Map(out.Diagnostics, func(d schedule.Diagnostic, _ int) string { return string(d.Kind) }))
	sort.Strings(kinds)
	want := append([]string{}, sc.Expected.Diagnostics...)
	sort.Strings(want)
	if !equal(kinds, want) {
		t.Errorf("scenario %s expected diagnostics %v, got %v", sc.Name, want, kinds)
	}
	if sc.Expected.Timeslots != nil {
		got := lo.Map(cons, func(c model.Consultation, _ int) string { return c.TimeslotID })
		sort.Strings(got)
		want := append([]string{}, sc.Expected.Timeslots...)
		sort.Strings(want)
		if !equal(got, want) {
			t.Errorf("scenario %s expected timeslots %v, got %v", sc.Name, want, got)
		}
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
