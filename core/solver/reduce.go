package solver

// Row is sum(Terms) >= RHS over free variables only.
type Row struct {
	Name  string
	Terms []Term
	RHS   int
}

// Reduced is a model with fixed variables substituted out and every
// constraint rewritten in ">=" form. Backends solve the reduced form and map
// values back with Expand.
type Reduced struct {
	// Free lists the variables still to be decided.
	Free []Var
	Rows []Row
	// Objective covers free variables; Offset is the contribution of fixed ones.
	Objective []Term
	Offset    int
	// Conflict names a constraint violated by the fixed variables alone.
	Conflict string

	model *Model
}

// Reduce substitutes fixed variables, drops empty or trivially satisfied
// rows and splits equalities into two inequalities.
func Reduce(m *Model) *Reduced {
	r := &Reduced{model: m}
	for v := Var(0); int(v) < m.NumVars(); v++ {
		if _, ok := m.Fixed(v); !ok {
			r.Free = append(r.Free, v)
		}
	}
	for _, t := range m.Objective() {
		if val, ok := m.Fixed(t.Var); ok {
			r.Offset += t.Coef * val
			continue
		}
		r.Objective = append(r.Objective, t)
	}
	for _, c := range m.Constraints() {
		var terms []Term
		rhs := c.RHS
		merged := make(map[Var]int)
		for _, t := range c.Terms {
			if val, ok := m.Fixed(t.Var); ok {
				rhs -= t.Coef * val
				continue
			}
			if _, seen := merged[t.Var]; !seen {
				terms = append(terms, Term{Var: t.Var})
			}
			merged[t.Var] += t.Coef
		}
		live := terms[:0]
		for _, t := range terms {
			if coef := merged[t.Var]; coef != 0 {
				live = append(live, Term{Var: t.Var, Coef: coef})
			}
		}
		switch c.Sense {
		case GE:
			r.addRow(c.Name, live, rhs)
		case LE:
			r.addRow(c.Name, negate(live), -rhs)
		default:
			r.addRow(c.Name, live, rhs)
			r.addRow(c.Name, negate(live), -rhs)
		}
	}
	return r
}

func (r *Reduced) addRow(name string, terms []Term, rhs int) {
	maxLHS := 0
	for _, t := range terms {
		if t.Coef > 0 {
			maxLHS += t.Coef
		}
	}
	minLHS := 0
	for _, t := range terms {
		if t.Coef < 0 {
			minLHS += t.Coef
		}
	}
	if minLHS >= rhs {
		return
	}
	if maxLHS < rhs && r.Conflict == "" {
		r.Conflict = name
	}
	r.Rows = append(r.Rows, Row{Name: name, Terms: terms, RHS: rhs})
}

// Feasible reports whether an assignment of the free variables (indexed like
// the full model) satisfies every row.
func (r *Reduced) Feasible(values []bool) bool {
	for _, row := range r.Rows {
		if eval(row.Terms, values) < row.RHS {
			return false
		}
	}
	return true
}

// Expand returns a full assignment: fixed variables take their value, free
// ones are read from free.
func (r *Reduced) Expand(free func(Var) bool) []bool {
	out := make([]bool, r.model.NumVars())
	for v := range out {
		if val, ok := r.model.Fixed(Var(v)); ok {
			out[v] = val == 1
			continue
		}
		out[v] = free(Var(v))
	}
	return out
}
