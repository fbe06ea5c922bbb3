package simplex

import (
	"context"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/caresched/core/factory"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/core/solver/solvertest"
	"github.com/kilianp07/caresched/core/timegrid"
	"github.com/kilianp07/caresched/infra/logger"
)

func TestEngineCases(t *testing.T) {
	solvertest.Run(t, New(Config{}).WithLogger(logger.NopLogger{}))
}

func TestEngineCancelled(t *testing.T) {
	solvertest.RunCancelled(t, New(Config{}).WithLogger(logger.NopLogger{}), solvertest.Cases[0].Build())
}

// A failing LP must not lose solutions: the search falls back to plain
// enumeration.
func TestEngineSurvivesLPFailure(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, mat.Matrix, []float64, float64) (float64, []float64, error) {
		return 0, nil, lp.ErrSingular
	}
	defer func() { lpSolve = orig }()
	solvertest.Run(t, New(Config{}).WithLogger(logger.NopLogger{}))
}

func TestEngineNodeLimit(t *testing.T) {
	// the triangle relaxation is fractional at the root, so one node is not
	// enough to prove anything
	m := solver.NewModel()
	a, b, c := m.NewVar("a"), m.NewVar("b"), m.NewVar("c")
	m.AtMostOne("ab", []solver.Var{a, b})
	m.AtMostOne("bc", []solver.Var{b, c})
	m.AtMostOne("ac", []solver.Var{a, c})
	for _, v := range []solver.Var{a, b, c} {
		m.Maximize(v, 1)
	}
	res, err := New(Config{MaxNodes: 1}).WithLogger(logger.NopLogger{}).Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status == solver.StatusOptimal || res.Status == solver.StatusInfeasible {
		t.Fatalf("node limit should prevent a proof, got %s", res.Status)
	}
}

func TestRegistered(t *testing.T) {
	e, err := solver.NewEngine(factory.ModuleConfig{Type: Name, Conf: map[string]any{"max_nodes": 10}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	se, ok := e.(*Engine)
	if !ok || se.cfg.MaxNodes != 10 {
		t.Fatalf("unexpected engine %#v", e)
	}
}

func TestEngineRelaxationHonoursDeadline(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	orig := lpSolve
	lpSolve = func([]float64, mat.Matrix, []float64, float64) (float64, []float64, error) {
		entered <- struct{}{}
		<-release
		return 0, nil, lp.ErrSingular
	}
	defer func() {
		<-entered
		close(release)
		lpSolve = orig
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := New(Config{}).WithLogger(logger.NopLogger{}).Solve(ctx, solvertest.Cases[0].Build())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("solve returned after %s", d)
	}
	if res.Status != solver.StatusUnknown {
		t.Fatalf("status %s, want unknown", res.Status)
	}
}

func TestEngineRefusesLargeModels(t *testing.T) {
	res, err := New(Config{MaxVars: 2}).WithLogger(logger.NopLogger{}).Solve(context.Background(), solvertest.Cases[0].Build())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != solver.StatusUnknown {
		t.Fatalf("status %s, want unknown", res.Status)
	}
}

func TestEngineGeneratedWithinLimit(t *testing.T) {
	g := timegrid.MustGrid("07:00", "19:00", 30*time.Minute)
	ds, err := model.Generate(g, model.GenerateOptions{Seed: 1, Clients: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, maxVars := range []int{0, -1} {
		enc := schedule.Build(ds, schedule.BuildOptions{Grid: g, Policy: model.QuotaTruncate})
		schedule.ComposeObjective(enc, schedule.DefaultWeights())

		const limit = 2 * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), limit)
		start := time.Now()
		res, err := New(Config{MaxVars: maxVars}).WithLogger(logger.NopLogger{}).Solve(ctx, enc.Model)
		cancel()
		if err != nil {
			t.Fatalf("max_vars %d: %v", maxVars, err)
		}
		if d := time.Since(start); d > limit+time.Second {
			t.Fatalf("max_vars %d: solve took %s with a %s limit", maxVars, d, limit)
		}
		if res.Status.HasSolution() {
			if v := enc.Model.Check(res.Values); len(v) > 0 {
				t.Fatalf("max_vars %d: assignment violates %v", maxVars, v)
			}
		}
	}
}
