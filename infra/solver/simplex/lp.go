package simplex

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/caresched/core/solver"
)

// relaxation is the LP relaxation of a branch-and-bound node.
type relaxation struct {
	vars []solver.Var
	// value is the LP optimum of the free part of the objective.
	value float64
	x     map[solver.Var]float64
}

// solveRelaxation solves max obj.x s.t. rows, 0 <= x <= 1 over the given
// variables. Rows are sum(a.x) >= b after fixing; every row keeps its own
// surplus column and every variable its own upper-bound slack, so the
// standard-form matrix always has full row rank.
//
// Standard form columns: x (n), surplus (r), upper slack (n).
func solveRelaxation(vars []solver.Var, rows []solver.Row, obj map[solver.Var]int, tol float64) (*relaxation, error) {
	n, r := len(vars), len(rows)
	col := make(map[solver.Var]int, n)
	for i, v := range vars {
		col[v] = i
	}
	cols := 2*n + r
	A := mat.NewDense(r+n, cols, nil)
	b := make([]float64, r+n)
	for i, row := range rows {
		for _, t := range row.Terms {
			A.Set(i, col[t.Var], float64(t.Coef))
		}
		A.Set(i, n+i, -1)
		b[i] = float64(row.RHS)
	}
	for j := 0; j < n; j++ {
		A.Set(r+j, j, 1)
		A.Set(r+j, n+r+j, 1)
		b[r+j] = 1
	}
	c := make([]float64, cols)
	for v, coef := range obj {
		if j, ok := col[v]; ok {
			c[j] = -float64(coef)
		}
	}
	opt, x, err := lpSolve(c, A, b, tol)
	if err != nil {
		return nil, err
	}
	out := &relaxation{vars: vars, value: -opt, x: make(map[solver.Var]float64, n)}
	for i, v := range vars {
		out.x[v] = x[i]
	}
	return out, nil
}

// lpSolve points to the LP routine. It can be overridden in tests.
var lpSolve = func(c []float64, A mat.Matrix, b []float64, tol float64) (float64, []float64, error) {
	return lp.Simplex(c, A, b, tol, nil)
}
