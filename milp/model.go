// Package milp is a small mixed-integer linear programming toolkit.
// A Model collects continuous and binary variables, linear constraints
// and an objective; a Solver turns it into a variable assignment.
package milp

import (
	"context"
	"fmt"
	"math"
	"time"
)

// VarKind tells whether a variable is continuous or binary.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

func (k VarKind) String() string {
	if k == Binary {
		return "binary"
	}
	return "continuous"
}

// Var is a handle to a variable registered in a Model.
type Var int

// Variable describes a single decision variable.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression: the sum of its terms.
// Repeated variables are summed.
type Expr []Term

// Sum returns the expression adding up every variable with coefficient one.
func Sum(vars ...Var) Expr {
	e := make(Expr, 0, len(vars))
	for _, v := range vars {
		e = append(e, Term{Var: v, Coef: 1})
	}
	return e
}

// Plus returns e extended with coef*v.
func (e Expr) Plus(v Var, coef float64) Expr {
	return append(e, Term{Var: v, Coef: coef})
}

// Eval computes the value of the expression for the given assignment.
func (e Expr) Eval(values []float64) float64 {
	var total float64
	for _, t := range e {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Relation is the comparison operator of a constraint.
type Relation int

const (
	LessEq Relation = iota
	GreaterEq
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "="
	}
}

// Constraint is the linear relation Expr Rel RHS.
type Constraint struct {
	Name string
	Expr Expr
	Rel  Relation
	RHS  float64
}

// Satisfied reports whether the assignment meets the constraint within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Expr.Eval(values)
	switch c.Rel {
	case LessEq:
		return lhs <= c.RHS+tol
	case GreaterEq:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Sense is the optimization direction of the objective.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Model holds the variables, constraints and objective of a MILP.
// A Model is not safe for concurrent mutation.
type Model struct {
	Name string

	vars      []Variable
	cons      []Constraint
	objective Expr
	sense     Sense
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// ContinuousVar registers a continuous variable bounded by [lb, ub].
func (m *Model) ContinuousVar(name string, lb, ub float64) Var {
	m.vars = append(m.vars, Variable{Name: name, Kind: Continuous, Lower: lb, Upper: ub})
	return Var(len(m.vars) - 1)
}

// BinaryVar registers a variable restricted to {0, 1}.
func (m *Model) BinaryVar(name string) Var {
	m.vars = append(m.vars, Variable{Name: name, Kind: Binary, Lower: 0, Upper: 1})
	return Var(len(m.vars) - 1)
}

// AddConstraint appends the constraint expr rel rhs to the model.
func (m *Model) AddConstraint(name string, expr Expr, rel Relation, rhs float64) error {
	for _, t := range expr {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			return fmt.Errorf("constraint %q references unknown variable %d", name, t.Var)
		}
	}
	m.cons = append(m.cons, Constraint{Name: name, Expr: expr, Rel: rel, RHS: rhs})
	return nil
}

// SetObjective replaces the objective of the model.
func (m *Model) SetObjective(expr Expr, sense Sense) {
	m.objective = expr
	m.sense = sense
}

// Variable returns the definition of v.
func (m *Model) Variable(v Var) Variable { return m.vars[v] }

// Variables returns every variable in registration order.
func (m *Model) Variables() []Variable { return m.vars }

// Constraints returns every constraint in insertion order.
func (m *Model) Constraints() []Constraint { return m.cons }

// Objective returns the objective expression and its sense.
func (m *Model) Objective() (Expr, Sense) { return m.objective, m.sense }

// Stats summarizes the size of a model.
type Stats struct {
	Continuous  int
	Binary      int
	Constraints int
	NonZeros    int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d continuous, %d binary variables, %d constraints, %d non-zeros",
		s.Continuous, s.Binary, s.Constraints, s.NonZeros)
}

// Stats counts the variables, constraints and non-zero coefficients of the model.
func (m *Model) Stats() Stats {
	var st Stats
	for _, v := range m.vars {
		if v.Kind == Binary {
			st.Binary++
		} else {
			st.Continuous++
		}
	}
	st.Constraints = len(m.cons)
	for _, c := range m.cons {
		st.NonZeros += len(c.Expr)
	}
	return st
}

// Solution is a variable assignment returned by a Solver.
type Solution struct {
	Values    []float64
	Objective float64
	Nodes     int
	Elapsed   time.Duration
}

// Value returns the value assigned to v.
func (s *Solution) Value(v Var) float64 { return s.Values[v] }

// Solver finds an optimal assignment for a model. Implementations must
// return ErrInfeasible when the model admits no solution.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}
