package solver

import (
	"fmt"
	"strings"
)

// Var identifies a 0/1 decision variable of a Model.
type Var int

// Term is coef * var.
type Term struct {
	Var  Var
	Coef int
}

// Sum builds a unit-coefficient expression.
func Sum(vars ...Var) []Term {
	out := make([]Term, len(vars))
	for i, v := range vars {
		out[i] = Term{Var: v, Coef: 1}
	}
	return out
}

// Sense of a linear constraint.
type Sense int

const (
	LE Sense = iota
	EQ
	GE
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case EQ:
		return "="
	case GE:
		return ">="
	default:
		return "?"
	}
}

// Constraint is sum(Terms) Sense RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   int
}

func (c Constraint) holds(lhs int) bool {
	switch c.Sense {
	case LE:
		return lhs <= c.RHS
	case GE:
		return lhs >= c.RHS
	default:
		return lhs == c.RHS
	}
}

func (c Constraint) String() string {
	var b strings.Builder
	for i, t := range c.Terms {
		if i > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%d*x%d", t.Coef, t.Var)
	}
	if len(c.Terms) == 0 {
		b.WriteString("0")
	}
	fmt.Fprintf(&b, " %s %d", c.Sense, c.RHS)
	return b.String()
}

// Model is a 0/1 integer linear program with a maximisation objective.
// A Model is owned by one run and is not safe for concurrent mutation.
type Model struct {
	names       []string
	lower       []int
	upper       []int
	constraints []Constraint
	objective   map[Var]int
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{objective: make(map[Var]int)}
}

// NewVar adds a 0/1 variable.
func (m *Model) NewVar(name string) Var {
	m.names = append(m.names, name)
	m.lower = append(m.lower, 0)
	m.upper = append(m.upper, 1)
	return Var(len(m.names) - 1)
}

func (m *Model) NumVars() int        { return len(m.names) }
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Name returns the label given to v.
func (m *Model) Name(v Var) string { return m.names[v] }

// Fix pins v to val (0 or 1).
func (m *Model) Fix(v Var, val int) {
	if val != 0 {
		val = 1
	}
	m.lower[v], m.upper[v] = val, val
}

// Bounds returns the current domain of v.
func (m *Model) Bounds(v Var) (lo, hi int) { return m.lower[v], m.upper[v] }

// Fixed reports whether v has a single value and returns it.
func (m *Model) Fixed(v Var) (int, bool) {
	if m.lower[v] == m.upper[v] {
		return m.lower[v], true
	}
	return 0, false
}

// Add appends a linear constraint.
func (m *Model) Add(name string, terms []Term, sense Sense, rhs int) {
	m.constraints = append(m.constraints, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// AtMostOne adds sum(vars) <= 1. Groups of fewer than two variables are
// trivially satisfied and skipped.
func (m *Model) AtMostOne(name string, vars []Var) {
	if len(vars) < 2 {
		return
	}
	m.Add(name, Sum(vars...), LE, 1)
}

// Exactly adds sum(vars) == n.
func (m *Model) Exactly(name string, vars []Var, n int) {
	m.Add(name, Sum(vars...), EQ, n)
}

// Constraints returns the constraint list; callers must not modify it.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Maximize adds coef*v to the objective.
func (m *Model) Maximize(v Var, coef int) {
	if coef == 0 {
		return
	}
	m.objective[v] += coef
}

// Objective returns the objective terms ordered by variable.
func (m *Model) Objective() []Term {
	out := make([]Term, 0, len(m.objective))
	for v := Var(0); int(v) < len(m.names); v++ {
		if c, ok := m.objective[v]; ok && c != 0 {
			out = append(out, Term{Var: v, Coef: c})
		}
	}
	return out
}

// And returns a fresh variable equal to a AND b:
//
//	y <= a, y <= b, y >= a + b - 1
func (m *Model) And(name string, a, b Var) Var {
	y := m.NewVar(name)
	m.Add(name+"/le_a", []Term{{y, 1}, {a, -1}}, LE, 0)
	m.Add(name+"/le_b", []Term{{y, 1}, {b, -1}}, LE, 0)
	m.Add(name+"/ge", []Term{{y, 1}, {a, -1}, {b, -1}}, GE, -1)
	return y
}

// Or returns a fresh variable equal to the logical OR of vars, that is the
// sum of vars clipped to {0,1}:
//
//	y >= x for every x, y <= sum(vars)
func (m *Model) Or(name string, vars []Var) Var {
	y := m.NewVar(name)
	for i, x := range vars {
		m.Add(fmt.Sprintf("%s/ge%d", name, i), []Term{{y, 1}, {x, -1}}, GE, 0)
	}
	terms := append([]Term{{y, 1}}, negate(Sum(vars...))...)
	m.Add(name+"/le_sum", terms, LE, 0)
	return y
}

func negate(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Var: t.Var, Coef: -t.Coef}
	}
	return out
}

func eval(terms []Term, values []bool) int {
	s := 0
	for _, t := range terms {
		if int(t.Var) < len(values) && values[t.Var] {
			s += t.Coef
		}
	}
	return s
}

// Evaluate returns the objective value of an assignment.
func (m *Model) Evaluate(values []bool) int {
	return eval(m.Objective(), values)
}

// Check lists the bounds and constraints violated by values.
func (m *Model) Check(values []bool) []string {
	var out []string
	if len(values) != len(m.names) {
		return []string{fmt.Sprintf("assignment has %d values for %d variables", len(values), len(m.names))}
	}
	for i, v := range values {
		x := 0
		if v {
			x = 1
		}
		if x < m.lower[i] || x > m.upper[i] {
			out = append(out, fmt.Sprintf("bound %s", m.names[i]))
		}
	}
	for _, c := range m.constraints {
		if !c.holds(eval(c.Terms, values)) {
			out = append(out, c.Name)
		}
	}
	return out
}
