package milp

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// pivotTolerance is the smallest tableau entry accepted as a pivot.
	pivotTolerance = 1e-9
	// feasibilityTolerance bounds the artificial mass left after phase one.
	feasibilityTolerance = 1e-9
	// ratioTieTolerance groups ratio test candidates considered equal.
	ratioTieTolerance = 1e-12
	// blandAfter is the number of consecutive degenerate pivots after which
	// the pricing switches to Bland's rule.
	blandAfter = 50
)

// lpRow is a dense linear constraint over the structural columns.
type lpRow struct {
	coef []float64
	rel  Relation
	rhs  float64
}

// simplex is a dense tableau for
//
//	minimize c·x  s.t.  A x (rel) b,  0 <= x <= u
//
// Variable bounds are kept out of the rows: a nonbasic column rests either
// at zero or at its upper bound. Every row gets a slack column and, when the
// slack cannot start basic, an artificial column, so the initial basis is
// the identity and always feasible.
type simplex struct {
	m, n int // rows and structural columns
	cols int // structural, slack and artificial columns

	tab   *mat.Dense // B⁻¹A
	beta  []float64  // values of the basic variables
	basis []int      // basic column of each row
	d     []float64  // reduced costs

	upper   []float64
	isBasic []bool
	atUpper []bool
	frozen  []bool
	arts    []int

	tol float64
}

// newSimplex builds the initial tableau. upper holds the upper bound of every
// structural column, +Inf for unbounded ones.
func newSimplex(rows []lpRow, upper []float64, tol float64) *simplex {
	m, n := len(rows), len(upper)

	// The row sign is chosen so that the right hand side is non-negative and,
	// for a zero right hand side, so that the slack enters with coefficient +1.
	signs := make([]float64, m)
	needArt := make([]bool, m)
	slacks := 0
	for i, r := range rows {
		var slack float64
		switch r.rel {
		case LessEq:
			slack = 1
		case GreaterEq:
			slack = -1
		}
		if slack != 0 {
			slacks++
		}

		switch {
		case r.rhs > 0:
			signs[i] = 1
		case r.rhs < 0:
			signs[i] = -1
		case slack < 0:
			signs[i] = -1
		default:
			signs[i] = 1
		}
		needArt[i] = signs[i]*slack != 1
	}

	s := &simplex{m: m, n: n, tol: tol}
	artCount := 0
	for _, need := range needArt {
		if need {
			artCount++
		}
	}
	s.cols = n + slacks + artCount
	s.beta = make([]float64, m)
	s.basis = make([]int, m)
	s.upper = make([]float64, s.cols)
	s.isBasic = make([]bool, s.cols)
	s.atUpper = make([]bool, s.cols)
	s.frozen = make([]bool, s.cols)
	copy(s.upper, upper)
	for j := n; j < s.cols; j++ {
		s.upper[j] = math.Inf(1)
	}
	if m == 0 {
		return s
	}

	s.tab = mat.NewDense(m, s.cols, nil)
	sc, ac := n, n+slacks
	for i, r := range rows {
		row := s.tab.RawRowView(i)
		for j, a := range r.coef {
			if a != 0 {
				row[j] = signs[i] * a
			}
		}
		s.beta[i] = signs[i] * r.rhs

		slackCol := -1
		switch r.rel {
		case LessEq:
			row[sc] = signs[i]
			slackCol = sc
			sc++
		case GreaterEq:
			row[sc] = -signs[i]
			slackCol = sc
			sc++
		}

		if needArt[i] {
			row[ac] = 1
			s.basis[i] = ac
			s.arts = append(s.arts, ac)
			ac++
		} else {
			s.basis[i] = slackCol
		}
		s.isBasic[s.basis[i]] = true
	}
	return s
}

// solve runs both simplex phases and returns the structural values.
func (s *simplex) solve(ctx context.Context, cost []float64) ([]float64, error) {
	if len(s.arts) > 0 {
		phase1 := make([]float64, s.cols)
		for _, j := range s.arts {
			phase1[j] = 1
		}
		s.price(phase1)
		if err := s.run(ctx); err != nil {
			return nil, err
		}

		var residual float64
		for i, j := range s.basis {
			if phase1[j] != 0 {
				residual += s.beta[i]
			}
		}
		if residual > feasibilityTolerance {
			return nil, ErrInfeasible
		}
		// Artificial columns are pinned at zero. Basic ones leave through
		// degenerate pivots.
		for _, j := range s.arts {
			s.upper[j] = 0
			s.frozen[j] = true
		}
		s.clamp()
	}

	phase2 := make([]float64, s.cols)
	copy(phase2, cost)
	s.price(phase2)
	if err := s.run(ctx); err != nil {
		return nil, err
	}
	return s.values(), nil
}

// price computes the reduced costs of the current basis.
func (s *simplex) price(cost []float64) {
	s.d = make([]float64, s.cols)
	copy(s.d, cost)
	for i := 0; i < s.m; i++ {
		if cb := cost[s.basis[i]]; cb != 0 {
			floats.AddScaled(s.d, -cb, s.tab.RawRowView(i))
		}
	}
}

// run pivots until no reduced cost improves the objective.
func (s *simplex) run(ctx context.Context) error {
	limit := 50 * (s.m + s.cols + 1)
	degenerate := 0
	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if iter >= limit {
			return ErrIterationLimit
		}

		q, dir := s.entering(degenerate > blandAfter)
		if q < 0 {
			return nil
		}
		r, theta, toUpper := s.ratio(q, dir, degenerate > blandAfter)
		if math.IsInf(theta, 1) {
			return ErrUnbounded
		}
		if theta <= ratioTieTolerance {
			degenerate++
		} else {
			degenerate = 0
		}
		s.step(q, dir, r, theta, toUpper)
	}
}

// entering picks the nonbasic column to move and its direction: +1 to
// increase it from zero, -1 to decrease it from its upper bound. Dantzig's
// rule is used unless bland is set.
func (s *simplex) entering(bland bool) (int, float64) {
	best, dir, bestVal := -1, 0.0, s.tol
	for j := 0; j < s.cols; j++ {
		if s.isBasic[j] || s.frozen[j] {
			continue
		}
		var v, dj float64
		switch {
		case s.atUpper[j] && s.d[j] > s.tol:
			v, dj = s.d[j], -1
		case !s.atUpper[j] && s.d[j] < -s.tol && s.upper[j] > 0:
			v, dj = -s.d[j], 1
		default:
			continue
		}
		if bland {
			return j, dj
		}
		if v > bestVal {
			best, dir, bestVal = j, dj, v
		}
	}
	return best, dir
}

// ratio finds how far column q can move. r is the row of the leaving
// variable, or -1 when q reaches its own bound first. toUpper reports
// whether the leaving variable stops at its upper bound.
func (s *simplex) ratio(q int, dir float64, bland bool) (r int, theta float64, toUpper bool) {
	r, theta = -1, s.upper[q]
	var bestPiv float64
	for i := 0; i < s.m; i++ {
		a := dir * s.tab.At(i, q)

		var (
			t  float64
			up bool
		)
		switch {
		case a > pivotTolerance:
			t = s.beta[i] / a
		case a < -pivotTolerance:
			u := s.upper[s.basis[i]]
			if math.IsInf(u, 1) {
				continue
			}
			t, up = (u-s.beta[i])/-a, true
		default:
			continue
		}
		if t < 0 {
			t = 0
		}

		take := false
		switch {
		case t < theta-ratioTieTolerance:
			take = true
		case t <= theta+ratioTieTolerance && r >= 0:
			if bland {
				take = s.basis[i] < s.basis[r]
			} else {
				take = math.Abs(a) > bestPiv
			}
		}
		if take {
			r, toUpper, bestPiv = i, up, math.Abs(a)
			theta = math.Min(theta, t)
		}
	}
	return r, theta, toUpper
}

// step moves column q by theta and, when r >= 0, swaps it into the basis.
func (s *simplex) step(q int, dir float64, r int, theta float64, toUpper bool) {
	if theta != 0 {
		for i := 0; i < s.m; i++ {
			if a := s.tab.At(i, q); a != 0 {
				s.beta[i] -= dir * theta * a
			}
		}
	}
	if r < 0 {
		s.atUpper[q] = !s.atUpper[q]
		s.clamp()
		return
	}

	val := theta
	if s.atUpper[q] {
		val = s.upper[q] - theta
	}
	leaving := s.basis[r]
	s.isBasic[leaving] = false
	s.atUpper[leaving] = toUpper
	s.isBasic[q] = true
	s.atUpper[q] = false
	s.basis[r] = q
	s.beta[r] = val

	s.pivot(r, q)
	s.clamp()
}

// pivot turns column q into the unit vector of row r.
func (s *simplex) pivot(r, q int) {
	prow := s.tab.RawRowView(r)
	floats.Scale(1/prow[q], prow)
	prow[q] = 1
	for i := 0; i < s.m; i++ {
		if i == r {
			continue
		}
		row := s.tab.RawRowView(i)
		if a := row[q]; a != 0 {
			floats.AddScaled(row, -a, prow)
			row[q] = 0
		}
	}
	if dq := s.d[q]; dq != 0 {
		floats.AddScaled(s.d, -dq, prow)
		s.d[q] = 0
	}
}

// clamp keeps the basic values inside their bounds.
func (s *simplex) clamp() {
	for i, j := range s.basis {
		if s.beta[i] < 0 {
			s.beta[i] = 0
		} else if s.beta[i] > s.upper[j] {
			s.beta[i] = s.upper[j]
		}
	}
}

// values returns the current value of every structural column.
func (s *simplex) values() []float64 {
	x := make([]float64, s.n)
	for j := range x {
		if s.atUpper[j] {
			x[j] = s.upper[j]
		}
	}
	for i, j := range s.basis {
		if j < s.n {
			x[j] = s.beta[i]
		}
	}
	return x
}
