// Package solvertest holds shared checks that every solver.Engine must pass.
package solvertest

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/caresched/core/solver"
)

// Case is a small model with its known optimum.
type Case struct {
	Name   string
	Build  func() *solver.Model
	Status solver.Status
	// Objective is checked when Status has a solution.
	Objective int
}

// Cases covers the constraint shapes produced by the scheduling builder.
var Cases = []Case{
	{
		Name: "packing",
		Build: func() *solver.Model {
			m := solver.NewModel()
			a, b, c := m.NewVar("a"), m.NewVar("b"), m.NewVar("c")
			m.AtMostOne("ab", []solver.Var{a, b})
			m.AtMostOne("bc", []solver.Var{b, c})
			m.Maximize(a, 2)
			m.Maximize(b, 3)
			m.Maximize(c, 2)
			return m
		},
		Status:    solver.StatusOptimal,
		Objective: 4,
	},
	{
		Name: "demand with exclusivity",
		Build: func() *solver.Model {
			m := solver.NewModel()
			a, b, c := m.NewVar("a"), m.NewVar("b"), m.NewVar("c")
			m.Exactly("demand", []solver.Var{a, b, c}, 2)
			m.AtMostOne("slot", []solver.Var{a, b})
			m.Maximize(a, 1)
			return m
		},
		Status:    solver.StatusOptimal,
		Objective: 1,
	},
	{
		Name: "and bonus",
		Build: func() *solver.Model {
			m := solver.NewModel()
			x, y := m.NewVar("x"), m.NewVar("y")
			z := m.And("xy", x, y)
			m.Maximize(z, 5)
			m.Maximize(x, -1)
			m.Maximize(y, -1)
			return m
		},
		Status:    solver.StatusOptimal,
		Objective: 3,
	},
	{
		Name: "fixed to zero",
		Build: func() *solver.Model {
			m := solver.NewModel()
			a, b := m.NewVar("a"), m.NewVar("b")
			m.Fix(a, 0)
			m.Exactly("demand", []solver.Var{a, b}, 1)
			m.Maximize(a, 1)
			m.Maximize(b, 1)
			return m
		},
		Status:    solver.StatusOptimal,
		Objective: 1,
	},
	{
		Name: "over demand",
		Build: func() *solver.Model {
			m := solver.NewModel()
			a, b := m.NewVar("a"), m.NewVar("b")
			m.Exactly("demand", []solver.Var{a, b}, 2)
			m.AtMostOne("slot", []solver.Var{a, b})
			return m
		},
		Status: solver.StatusInfeasible,
	},
	{
		Name: "conflict after fixing",
		Build: func() *solver.Model {
			m := solver.NewModel()
			a := m.NewVar("a")
			m.Fix(a, 0)
			m.Exactly("demand", []solver.Var{a}, 1)
			return m
		},
		Status: solver.StatusInfeasible,
	},
	{
		Name: "empty",
		Build: func() *solver.Model {
			return solver.NewModel()
		},
		Status:    solver.StatusOptimal,
		Objective: 0,
	},
}

// Run solves every case with e and checks status, objective and that the
// returned assignment satisfies the model.
func Run(t *testing.T, e solver.Engine) {
	t.Helper()
	for _, c := range Cases {
		t.Run(c.Name, func(t *testing.T) {
			m := c.Build()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			res, err := e.Solve(ctx, m)
			if err != nil {
				t.Fatalf("solve: %v", err)
			}
			if res.Status != c.Status {
				t.Fatalf("status %s, want %s", res.Status, c.Status)
			}
			if !res.Status.HasSolution() {
				return
			}
			if v := m.Check(res.Values); len(v) > 0 {
				t.Fatalf("assignment violates %v", v)
			}
			if res.Objective != c.Objective || m.Evaluate(res.Values) != c.Objective {
				t.Fatalf("objective %d (evaluated %d), want %d", res.Objective, m.Evaluate(res.Values), c.Objective)
			}
		})
	}
}

// RunCancelled checks that an already expired context yields no solution
// and no error.
func RunCancelled(t *testing.T, e solver.Engine, m *solver.Model) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Solve(ctx, m)
	if err != nil {
		t.Fatalf("cancelled solve returned error: %v", err)
	}
	if res.Status == solver.StatusOptimal || res.Status == solver.StatusInfeasible {
		t.Fatalf("cancelled solve claimed a proof: %s", res.Status)
	}
}
