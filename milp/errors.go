package milp

import "github.com/pkg/errors"

var (
	// ErrInfeasible is returned when no assignment satisfies every constraint.
	ErrInfeasible = errors.New("milp: model is infeasible")
	// ErrUnbounded is returned when the objective can be improved without limit.
	ErrUnbounded = errors.New("milp: model is unbounded")
	// ErrNodeLimit is returned when the search hits its node limit before
	// any feasible assignment was found.
	ErrNodeLimit = errors.New("milp: node limit reached without a feasible solution")
	// ErrIterationLimit is returned when a relaxation does not converge.
	ErrIterationLimit = errors.New("milp: simplex iteration limit reached")
)
