// Package pseudobool solves 0/1 models with the gophersat pseudo-boolean
// optimiser.
package pseudobool

import (
	"context"
	"fmt"

	gophersat "github.com/crillab/gophersat/solver"

	"github.com/kilianp07/caresched/core/logger"
	"github.com/kilianp07/caresched/core/solver"
	infralogger "github.com/kilianp07/caresched/infra/logger"
)

// Name is the registry key of this engine.
const Name = "pseudobool"

// Engine adapts gophersat to solver.Engine. It takes no settings.
type Engine struct {
	log logger.Logger
}

// New returns an engine logging through log (nil means the default logger).
func New(log logger.Logger) *Engine {
	if log == nil {
		log = infralogger.New("pseudobool")
	}
	return &Engine{log: log}
}

func init() {
	_ = solver.RegisterEngine(Name, func(map[string]any) (solver.Engine, error) {
		return New(nil), nil
	})
}

func (e *Engine) Name() string { return Name }

// problem is the gophersat encoding of a reduced model. Only free variables
// that occur in a row get a SAT index; the others are set directly from the
// sign of their objective coefficient.
type problem struct {
	red     *solver.Reduced
	satID   map[solver.Var]int
	order   []solver.Var
	constrs []gophersat.PBConstr
	costLit []gophersat.Lit
	costW   []int
	// loose holds values of free variables absent from every row.
	loose map[solver.Var]bool
}

func encode(red *solver.Reduced) (*problem, bool) {
	p := &problem{red: red, satID: make(map[solver.Var]int), loose: make(map[solver.Var]bool)}
	id := func(v solver.Var) int {
		if n, ok := p.satID[v]; ok {
			return n
		}
		p.order = append(p.order, v)
		p.satID[v] = len(p.order)
		return len(p.order)
	}
	for _, row := range red.Rows {
		rhs := row.RHS
		total := 0
		for _, t := range row.Terms {
			// c*x == c - c*not(x): negative weights move onto the negated literal
			if t.Coef < 0 {
				rhs -= t.Coef
				total -= t.Coef
				continue
			}
			total += t.Coef
		}
		if rhs <= 0 {
			continue
		}
		if total < rhs {
			return nil, false
		}
		lits := make([]int, len(row.Terms))
		weights := make([]int, len(row.Terms))
		for i, t := range row.Terms {
			lits[i], weights[i] = id(t.Var), t.Coef
			if t.Coef < 0 {
				lits[i], weights[i] = -lits[i], -t.Coef
			}
		}
		p.constrs = append(p.constrs, gophersat.GtEq(lits, weights, rhs))
	}
	for _, t := range red.Objective {
		n, ok := p.satID[t.Var]
		if !ok {
			p.loose[t.Var] = t.Coef > 0
			continue
		}
		// maximise c*x by minimising the cost of the literal that loses c
		if t.Coef > 0 {
			p.costLit = append(p.costLit, gophersat.IntToLit(int32(-n)))
			p.costW = append(p.costW, t.Coef)
		} else {
			p.costLit = append(p.costLit, gophersat.IntToLit(int32(n)))
			p.costW = append(p.costW, -t.Coef)
		}
	}
	return p, true
}

// gophersat allocates clauses from a package-level pool that is not safe for
// concurrent use. sem admits one search at a time and stays held by a search
// abandoned at its deadline until gophersat returns on its own.
var sem = make(chan struct{}, 1)

type outcome struct {
	status solver.Status
	model  []bool
	err    error
}

// Solve runs gophersat's optimiser in its own goroutine and keeps the last
// model it streams. When ctx ends first the best model so far is returned as
// FEASIBLE, or UNKNOWN when there is none. gophersat has no cooperative
// cancellation, so an abandoned search keeps running, and blocks later solves,
// until it finishes on its own.
func (e *Engine) Solve(ctx context.Context, m *solver.Model) (solver.Result, error) {
	red := solver.Reduce(m)
	if red.Conflict != "" {
		e.log.Debugf("constraint %s unsatisfiable after fixing variables", red.Conflict)
		return solver.Result{Status: solver.StatusInfeasible}, nil
	}
	p, ok := encode(red)
	if !ok {
		return solver.Result{Status: solver.StatusInfeasible}, nil
	}
	e.log.Debugw("pseudo-boolean problem", map[string]any{
		"vars":        len(p.order),
		"constraints": len(p.constrs),
		"cost_terms":  len(p.costLit),
	})
	if len(p.constrs) == 0 {
		return p.result(nil, solver.StatusOptimal), nil
	}
	if err := ctx.Err(); err != nil {
		return solver.Result{Status: solver.StatusUnknown}, nil
	}

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		e.log.Warnf("solver busy with an abandoned search: %v", ctx.Err())
		return solver.Result{Status: solver.StatusUnknown}, nil
	}

	results := make(chan gophersat.Result)
	done := make(chan outcome, 1)
	go p.optimise(results, done)

	var incumbent []bool
	for {
		select {
		case r, open := <-results:
			if !open {
				results = nil
				continue
			}
			if r.Status == gophersat.Sat {
				incumbent = r.Model
			}
		case out := <-done:
			if out.err != nil {
				return solver.Result{Status: solver.StatusUnknown}, out.err
			}
			if !out.status.HasSolution() {
				return solver.Result{Status: out.status}, nil
			}
			return p.result(out.model, out.status), nil
		case <-ctx.Done():
			go drain(results, done)
			if incumbent == nil {
				e.log.Warnf("solve interrupted before a first model: %v", ctx.Err())
				return solver.Result{Status: solver.StatusUnknown}, nil
			}
			e.log.Warnf("solve interrupted, keeping the best model so far: %v", ctx.Err())
			return p.result(incumbent, solver.StatusFeasible), nil
		}
	}
}

// optimise owns sem for its whole lifetime. Every model gophersat finds is
// sent on results before the final outcome is sent on done.
func (p *problem) optimise(results chan gophersat.Result, done chan<- outcome) {
	defer func() { <-sem }()
	defer func() {
		if r := recover(); r != nil {
			done <- outcome{err: fmt.Errorf("gophersat: %v", r)}
		}
	}()
	pb := gophersat.ParsePBConstrs(p.constrs)
	if len(p.costLit) > 0 {
		pb.SetCostFunc(p.costLit, p.costW)
	}
	res := optimal(pb, results)
	switch res.Status {
	case gophersat.Sat:
		done <- outcome{status: solver.StatusOptimal, model: res.Model}
	case gophersat.Unsat:
		done <- outcome{status: solver.StatusInfeasible}
	default:
		done <- outcome{status: solver.StatusUnknown}
	}
}

// optimal runs one gophersat optimisation, streaming each improving model on
// results and closing it before returning. It can be overridden in tests.
var optimal = func(pb *gophersat.Problem, results chan gophersat.Result) gophersat.Result {
	return gophersat.New(pb).Optimal(results, nil)
}

// drain keeps an abandoned search from blocking on its next model. A nil
// results channel is already closed.
func drain(results <-chan gophersat.Result, done <-chan outcome) {
	for {
		select {
		case _, open := <-results:
			if !open {
				return
			}
		case <-done:
			return
		}
	}
}

func (p *problem) result(model []bool, status solver.Status) solver.Result {
	values := p.red.Expand(func(v solver.Var) bool {
		if n, ok := p.satID[v]; ok {
			return n-1 < len(model) && model[n-1]
		}
		return p.loose[v]
	})
	res := solver.Result{Status: status, Values: values}
	for _, t := range p.red.Objective {
		if values[t.Var] {
			res.Objective += t.Coef
		}
	}
	res.Objective += p.red.Offset
	return res
}
