package milp

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const (
	defaultTolerance    = 1e-10
	defaultIntTolerance = 1e-6
)

// BranchAndBound solves a Model by depth-first branch and bound over its
// binary variables, solving each node's LP relaxation with a bounded
// variable simplex. Cancellation of the context is honored between pivots.
type BranchAndBound struct {
	// Tolerance is the reduced cost under which the simplex stops.
	// Zero selects 1e-10.
	Tolerance float64
	// IntTolerance is the distance from 0 or 1 under which a binary
	// variable counts as integral. Zero selects 1e-6.
	IntTolerance float64
	// NodeLimit bounds the number of explored nodes. Zero means no limit.
	NodeLimit int
}

var _ Solver = (*BranchAndBound)(nil)

// node holds the variable bounds of one subproblem.
type node struct {
	lower, upper []float64
}

// Solve returns an optimal assignment for m. It stops early when ctx is
// done, returning the context error. If the node limit is hit after an
// incumbent was found the incumbent is returned.
func (bb *BranchAndBound) Solve(ctx context.Context, m *Model) (*Solution, error) {
	start := time.Now()
	n := len(m.vars)

	root := node{lower: make([]float64, n), upper: make([]float64, n)}
	for i, v := range m.vars {
		if math.IsInf(v.Lower, -1) {
			return nil, errors.Errorf("milp: variable %q has no finite lower bound", v.Name)
		}
		root.lower[i], root.upper[i] = v.Lower, v.Upper
	}

	var (
		best    []float64
		bestObj = math.Inf(1)
		nodes   int
		stack   = []node{root}
		intTol  = bb.intTolerance()
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bb.NodeLimit > 0 && nodes >= bb.NodeLimit {
			if best == nil {
				return nil, ErrNodeLimit
			}
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		obj, x, err := bb.relax(ctx, m, nd.lower, nd.upper)
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if obj >= bestObj-intTol {
			continue
		}

		j := mostFractional(m, x, intTol)
		if j < 0 {
			for i, v := range m.vars {
				if v.Kind == Binary {
					x[i] = math.Round(x[i])
				}
			}
			best, bestObj = x, obj
			continue
		}

		down := node{lower: clone(nd.lower), upper: clone(nd.upper)}
		down.upper[j] = 0
		up := node{lower: clone(nd.lower), upper: clone(nd.upper)}
		up.lower[j] = 1

		// The branch nearest to the relaxed value is explored first.
		if x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if best == nil {
		return nil, ErrInfeasible
	}
	obj, _ := m.Objective()
	return &Solution{
		Values:    best,
		Objective: obj.Eval(best),
		Nodes:     nodes,
		Elapsed:   time.Since(start),
	}, nil
}

// relax solves the LP relaxation of m restricted to the given bounds.
// The returned objective is always expressed as a minimization.
//
// Every variable is shifted by its lower bound so that it is non-negative;
// upper bounds stay with the columns instead of becoming rows.
func (bb *BranchAndBound) relax(ctx context.Context, m *Model, lower, upper []float64) (float64, []float64, error) {
	n := len(m.vars)
	for i := range lower {
		if lower[i] > upper[i] {
			return 0, nil, ErrInfeasible
		}
	}

	rows := make([]lpRow, 0, len(m.cons))
	for _, c := range m.cons {
		coef := make([]float64, n)
		rhs := c.RHS
		for _, t := range c.Expr {
			coef[t.Var] += t.Coef
		}
		empty := true
		for i, a := range coef {
			if a != 0 {
				rhs -= a * lower[i]
				empty = false
			}
		}
		if empty {
			if !(Constraint{Rel: c.Rel, RHS: rhs}).Satisfied(nil, bb.intTolerance()) {
				return 0, nil, ErrInfeasible
			}
			continue
		}
		rows = append(rows, lpRow{coef: coef, rel: c.Rel, rhs: rhs})
	}

	width := make([]float64, n)
	for i := range width {
		width[i] = upper[i] - lower[i]
	}

	obj, sense := m.Objective()
	cost := make([]float64, n)
	for _, t := range obj {
		if sense == Maximize {
			cost[t.Var] -= t.Coef
		} else {
			cost[t.Var] += t.Coef
		}
	}

	shifted, err := newSimplex(rows, width, bb.tolerance()).solve(ctx, cost)
	if err != nil {
		return 0, nil, err
	}

	x := make([]float64, n)
	for i, v := range shifted {
		// Values within the tolerance of a bound are moved onto it.
		switch {
		case v < feasibilityTolerance:
			v = 0
		case width[i]-v < feasibilityTolerance:
			v = width[i]
		}
		x[i] = lower[i] + v
	}
	return floats.Dot(cost, x), x, nil
}

func (bb *BranchAndBound) tolerance() float64 {
	if bb.Tolerance > 0 {
		return bb.Tolerance
	}
	return defaultTolerance
}

func (bb *BranchAndBound) intTolerance() float64 {
	if bb.IntTolerance > 0 {
		return bb.IntTolerance
	}
	return defaultIntTolerance
}

// mostFractional returns the binary variable farthest from an integer,
// or -1 if every binary variable is integral.
func mostFractional(m *Model, x []float64, tol float64) int {
	idx, worst := -1, tol
	for i, v := range m.vars {
		if v.Kind != Binary {
			continue
		}
		frac := math.Abs(x[i] - math.Round(x[i]))
		if frac > worst {
			idx, worst = i, frac
		}
	}
	return idx
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
