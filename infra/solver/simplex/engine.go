// Package simplex solves 0/1 models by depth-first branch and bound over LP
// relaxations computed with gonum's simplex implementation. It is exact but
// dense, so it suits small weekly instances and cross-checking the default
// engine.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/caresched/core/factory"
	"github.com/kilianp07/caresched/core/logger"
	"github.com/kilianp07/caresched/core/solver"
	infralogger "github.com/kilianp07/caresched/infra/logger"
)

// Name is the registry key of this engine.
const Name = "simplex"

// Config tunes the search.
type Config struct {
	// Tolerance passed to lp.Simplex; 0 means 1e-9.
	Tolerance float64 `json:"tolerance"`
	// MaxNodes bounds the number of explored nodes; 0 means unlimited.
	MaxNodes int `json:"max_nodes"`
	// MaxVars refuses models with more free variables than this, reporting
	// UNKNOWN. 0 means DefaultMaxVars, a negative value disables the cap.
	MaxVars int `json:"max_vars"`
}

// DefaultMaxVars keeps the dense relaxation matrix within a few hundred
// rows and columns.
const DefaultMaxVars = 400

// Engine implements solver.Engine.
type Engine struct {
	cfg Config
	log logger.Logger
}

// New returns a branch-and-bound engine.
func New(cfg Config) *Engine {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-9
	}
	if cfg.MaxVars == 0 {
		cfg.MaxVars = DefaultMaxVars
	}
	return &Engine{cfg: cfg, log: infralogger.New("simplex")}
}

// WithLogger replaces the engine logger.
func (e *Engine) WithLogger(l logger.Logger) *Engine {
	e.log = l
	return e
}

func init() {
	_ = solver.RegisterEngine(Name, func(conf map[string]any) (solver.Engine, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c), nil
	})
}

func (e *Engine) Name() string { return Name }

const integrality = 1e-6

type node struct {
	fixed map[solver.Var]bool
}

func (n node) with(v solver.Var, val bool) node {
	f := make(map[solver.Var]bool, len(n.fixed)+1)
	for k, b := range n.fixed {
		f[k] = b
	}
	f[v] = val
	return node{fixed: f}
}

type search struct {
	red *solver.Reduced
	obj map[solver.Var]int
	tol float64

	best      []bool
	bestValue int
	found     bool
	nodes     int
}

// Solve explores the tree until it is exhausted, ctx ends or MaxNodes is
// reached. An incumbent at interruption is reported as FEASIBLE.
func (e *Engine) Solve(ctx context.Context, m *solver.Model) (solver.Result, error) {
	red := solver.Reduce(m)
	if red.Conflict != "" {
		e.log.Debugf("constraint %s unsatisfiable after fixing variables", red.Conflict)
		return solver.Result{Status: solver.StatusInfeasible}, nil
	}
	if n := len(red.Free); e.cfg.MaxVars > 0 && n > e.cfg.MaxVars {
		e.log.Warnf("model has %d free variables, above the limit of %d", n, e.cfg.MaxVars)
		return solver.Result{Status: solver.StatusUnknown}, nil
	}
	s := &search{red: red, obj: make(map[solver.Var]int), tol: e.cfg.Tolerance}
	for _, t := range red.Objective {
		s.obj[t.Var] += t.Coef
	}

	complete := true
	stack := []node{{fixed: map[solver.Var]bool{}}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			e.log.Warnf("branch and bound interrupted after %d nodes: %v", s.nodes, err)
			complete = false
			break
		}
		if e.cfg.MaxNodes > 0 && s.nodes >= e.cfg.MaxNodes {
			e.log.Warnf("branch and bound stopped at node limit %d", e.cfg.MaxNodes)
			complete = false
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.nodes++
		children, err := s.expand(ctx, nd)
		if err != nil {
			e.log.Warnf("branch and bound interrupted after %d nodes: %v", s.nodes, err)
			complete = false
			break
		}
		stack = append(stack, children...)
	}
	e.log.Debugw("branch and bound finished", map[string]any{"nodes": s.nodes, "found": s.found, "complete": complete})

	switch {
	case s.found && complete:
		return s.result(solver.StatusOptimal), nil
	case s.found:
		return s.result(solver.StatusFeasible), nil
	case complete:
		return solver.Result{Status: solver.StatusInfeasible}, nil
	default:
		return solver.Result{Status: solver.StatusUnknown}, nil
	}
}

// expand processes one node and returns its children, the preferred child
// last so it is popped first. It fails only when ctx ends during the
// relaxation.
func (s *search) expand(ctx context.Context, nd node) ([]node, error) {
	rows, free, fixedValue, ok := s.restrict(nd)
	if !ok {
		return nil, nil
	}
	if len(free) == 0 {
		s.offer(nd, nil, fixedValue)
		return nil, nil
	}
	rel, err := s.relax(ctx, free, rows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, lp.ErrInfeasible) {
			return nil, nil
		}
		// numerical trouble: branch blindly on the first free variable
		v := free[0]
		return []node{nd.with(v, false), nd.with(v, true)}, nil
	}
	bound := int(math.Floor(rel.value + float64(fixedValue) + integrality))
	if s.found && bound <= s.bestValue {
		return nil, nil
	}
	branch, frac := solver.Var(-1), 0.0
	for _, v := range free {
		x := rel.x[v]
		d := math.Min(x, 1-x)
		if d > integrality && d > frac {
			branch, frac = v, d
		}
	}
	if branch < 0 {
		rounded := make(map[solver.Var]bool, len(free))
		for _, v := range free {
			rounded[v] = rel.x[v] > 0.5
		}
		if s.offer(nd, rounded, fixedValue) {
			return nil, nil
		}
		// rounding broke a row; fall back to branching
		branch = free[0]
	}
	return []node{nd.with(branch, false), nd.with(branch, true)}, nil
}

// relax solves the node relaxation in its own goroutine so ctx can cut a
// long simplex run short. An abandoned relaxation finishes in the background
// and its answer is dropped.
func (s *search) relax(ctx context.Context, free []solver.Var, rows []solver.Row) (*relaxation, error) {
	type answer struct {
		rel *relaxation
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: fmt.Errorf("simplex: %v", r)}
			}
		}()
		rel, err := solveRelaxation(free, rows, s.obj, s.tol)
		ch <- answer{rel, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-ch:
		return a.rel, a.err
	}
}

// restrict substitutes the node's fixings into the reduced rows.
func (s *search) restrict(nd node) (rows []solver.Row, free []solver.Var, fixedValue int, ok bool) {
	for _, v := range s.red.Free {
		if val, isFixed := nd.fixed[v]; isFixed {
			if val {
				fixedValue += s.obj[v]
			}
			continue
		}
		free = append(free, v)
	}
	for _, row := range s.red.Rows {
		rhs := row.RHS
		var terms []solver.Term
		for _, t := range row.Terms {
			if val, isFixed := nd.fixed[t.Var]; isFixed {
				if val {
					rhs -= t.Coef
				}
				continue
			}
			terms = append(terms, t)
		}
		if len(terms) == 0 {
			if rhs > 0 {
				return nil, nil, 0, false
			}
			continue
		}
		rows = append(rows, solver.Row{Name: row.Name, Terms: terms, RHS: rhs})
	}
	return rows, free, fixedValue, true
}

// offer checks a complete assignment exactly and keeps it when it improves
// on the incumbent.
func (s *search) offer(nd node, rest map[solver.Var]bool, fixedValue int) bool {
	values := s.red.Expand(func(v solver.Var) bool {
		if val, ok := nd.fixed[v]; ok {
			return val
		}
		return rest[v]
	})
	if !s.red.Feasible(values) {
		return false
	}
	value := fixedValue
	for v, val := range rest {
		if val {
			value += s.obj[v]
		}
	}
	if !s.found || value > s.bestValue {
		s.best, s.bestValue, s.found = values, value, true
	}
	return true
}

func (s *search) result(status solver.Status) solver.Result {
	return solver.Result{Status: status, Values: s.best, Objective: s.bestValue + s.red.Offset}
}
