package invhaar

import (
	"context"

	"github.com/esimov/invhaar/milp"
	"github.com/esimov/invhaar/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Inverter searches for the darkest grid a cascade accepts.
type Inverter struct {
	solver milp.Solver
	cfg    *Config
}

// NewInverter returns an Inverter using solver. A nil cfg selects the defaults.
func NewInverter(solver milp.Solver, cfg *Config) *Inverter {
	if cfg == nil {
		cfg = EmptyConfig()
	}
	return &Inverter{solver: solver, cfg: cfg}
}

// SolveMinIntensity minimizes the sum of the pixel variables of cm and
// returns the optimal grid on the detector's intensity scale. The solver is
// bounded by the configured timeout. The grid is run through Detect before
// it is returned; a grid the cascade rejects is reported as a SolveError of
// kind SolveRejected.
func (inv *Inverter) SolveMinIntensity(ctx context.Context, cm *CascadeModel) (Grid, error) {
	runID := uuid.NewString()

	cm.MinimizeIntensity()
	utils.Logf("[%s] model %q: %s", runID, cm.Model.Name, cm.Model.Stats())

	ctx, cancel := context.WithTimeout(ctx, inv.cfg.GetTimeout())
	defer cancel()

	sol, err := inv.solver.Solve(ctx, cm.Model)
	if err != nil {
		if errors.Is(err, milp.ErrInfeasible) {
			return nil, &SolveError{Kind: SolveInfeasible, Err: err}
		}
		return nil, &SolveError{Kind: SolveUnavailable, Err: err}
	}
	utils.Logf("[%s] objective %.6f after %d nodes in %s",
		runID, sol.Objective, sol.Nodes, utils.FormatTime(sol.Elapsed))

	grid := cm.Grid(sol)
	res, err := Evaluate(cm.Cascade, grid, nil)
	if err != nil {
		return nil, &SolveError{Kind: SolveRejected, Err: err}
	}
	if !res.Accepted {
		return nil, &SolveError{
			Kind: SolveRejected,
			Err:  errors.Errorf("detector bailed out at stage %d", res.Stage),
		}
	}
	return grid, nil
}
