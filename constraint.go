package invhaar

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/esimov/invhaar/milp"
	"github.com/pkg/errors"
)

// DefaultModelName is the name given to models built by BuildModel.
const DefaultModelName = "Inverse haar cascade"

// CascadeModel is the mixed-integer encoding of a cascade: one continuous
// variable in [0, 1] per window pixel and one binary variable per feature
// used by a weak classifier. Every assignment satisfying its constraints,
// once scaled by IntensityScale, is a grid the cascade accepts.
type CascadeModel struct {
	Cascade *Cascade
	Model   *milp.Model
	Epsilon float64

	pixelVars   []milp.Var
	featureVars map[int]milp.Var
}

// PixelVar returns the variable of the pixel at (x, y).
func (cm *CascadeModel) PixelVar(x, y int) milp.Var {
	return cm.pixelVars[y*cm.Cascade.Width+x]
}

// PixelVars returns every pixel variable in row major order.
func (cm *CascadeModel) PixelVars() []milp.Var { return cm.pixelVars }

// FeatureVar returns the indicator variable of the feature at idx.
// Features no weak classifier refers to have no variable.
func (cm *CascadeModel) FeatureVar(idx int) (milp.Var, bool) {
	v, ok := cm.featureVars[idx]
	return v, ok
}

// MinimizeIntensity sets the objective of the model to the sum of all
// pixel variables.
func (cm *CascadeModel) MinimizeIntensity() {
	cm.Model.SetObjective(milp.Sum(cm.pixelVars...), milp.Minimize)
}

// Grid reads the pixel variables of sol back into a grid on the detector's
// intensity scale.
func (cm *CascadeModel) Grid(sol *milp.Solution) Grid {
	c := cm.Cascade
	g := NewGrid(c.Height, c.Width)
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			g[y][x] = sol.Value(cm.PixelVar(x, y)) * IntensityScale
		}
	}
	return g
}

type buildOptions struct {
	epsilon float64
	workers int
	name    string
}

// BuildOption customizes BuildModel.
type BuildOption func(*buildOptions)

// WithEpsilon sets the margin by which classifier and stage thresholds
// are tightened. It must not be negative.
func WithEpsilon(eps float64) BuildOption {
	return func(o *buildOptions) { o.epsilon = eps }
}

// WithWorkers sets the number of goroutines computing classifier constraints.
func WithWorkers(n int) BuildOption {
	return func(o *buildOptions) { o.workers = n }
}

// WithName sets the name of the produced model.
func WithName(name string) BuildOption {
	return func(o *buildOptions) { o.name = name }
}

// classifierJob identifies a weak classifier by its position in the cascade.
type classifierJob struct {
	pos   int
	stage int
	index int
}

// BuildModel encodes every weak classifier and stage threshold of c as
// linear constraints.
//
// For a classifier with PassVal >= FailVal, setting its feature variable
// demands the feature response to clear Threshold+eps:
//
//	sum(pixel*w) - (Threshold+eps)*f >= 0
//
// For PassVal < FailVal, leaving it unset demands the response to stay
// at or below Threshold-eps:
//
//	sum(pixel*w) + (Threshold-eps)*f <= Threshold-eps
//
// Each stage then requires the credited classifier outputs to reach its
// threshold:
//
//	sum((PassVal-FailVal)*f) >= Threshold + eps - sum(FailVal)
//
// The credited output of a classifier never exceeds what the detector
// computes for the same pixels, so stage acceptance carries over.
func BuildModel(ctx context.Context, c *Cascade, opts ...BuildOption) (*CascadeModel, error) {
	o := buildOptions{workers: runtime.NumCPU(), name: DefaultModelName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.epsilon < 0 {
		return nil, fmt.Errorf("epsilon must not be negative, got %g", o.epsilon)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	m := milp.NewModel(o.name)
	cm := &CascadeModel{
		Cascade:     c,
		Model:       m,
		Epsilon:     o.epsilon,
		pixelVars:   make([]milp.Var, c.Width*c.Height),
		featureVars: make(map[int]milp.Var),
	}
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			cm.pixelVars[y*c.Width+x] = m.ContinuousVar(fmt.Sprintf("pixel_%d_%d", x, y), 0, 1)
		}
	}

	var (
		used []int
		jobs []classifierJob
	)
	for si, st := range c.Stages {
		for ci, wc := range st.WeakClassifiers {
			if _, ok := cm.featureVars[wc.FeatureIdx]; !ok {
				cm.featureVars[wc.FeatureIdx] = -1
				used = append(used, wc.FeatureIdx)
			}
			jobs = append(jobs, classifierJob{pos: len(jobs), stage: si, index: ci})
		}
	}
	sort.Ints(used)
	for _, idx := range used {
		cm.featureVars[idx] = m.BinaryVar(fmt.Sprintf("feature_%d", idx))
	}

	exprs, err := cm.classifierExprs(ctx, jobs, o.workers)
	if err != nil {
		return nil, err
	}

	pos := 0
	for si, st := range c.Stages {
		var (
			stageExpr milp.Expr
			failTotal float64
		)
		for ci, wc := range st.WeakClassifiers {
			f := cm.featureVars[wc.FeatureIdx]
			name := fmt.Sprintf("stage_%d_classifier_%d", si, ci)
			expr := exprs[pos]
			pos++

			if wc.PassVal >= wc.FailVal {
				thr := wc.Threshold + o.epsilon
				err = m.AddConstraint(name, expr.Plus(f, -thr), milp.GreaterEq, 0)
			} else {
				thr := wc.Threshold - o.epsilon
				err = m.AddConstraint(name, expr.Plus(f, thr), milp.LessEq, thr)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "unable to add constraint %s", name)
			}

			stageExpr = stageExpr.Plus(f, wc.PassVal-wc.FailVal)
			failTotal += wc.FailVal
		}

		name := fmt.Sprintf("stage_%d", si)
		if err := m.AddConstraint(name, stageExpr, milp.GreaterEq, st.Threshold+o.epsilon-failTotal); err != nil {
			return nil, errors.Wrapf(err, "unable to add constraint %s", name)
		}
	}
	return cm, nil
}

// classifierExprs computes the weighted pixel sum of every job's feature
// concurrently. The result is indexed by job position.
func (cm *CascadeModel) classifierExprs(ctx context.Context, jobs []classifierJob, workers int) ([]milp.Expr, error) {
	exprs := make([]milp.Expr, len(jobs))
	if len(jobs) == 0 {
		return exprs, nil
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan classifierJob)
	go func() {
		defer close(queue)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case queue <- j:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range queue {
				wc := cm.Cascade.Stages[j.stage].WeakClassifiers[j.index]
				exprs[j.pos] = cm.featureExpr(wc.FeatureIdx)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return exprs, nil
}

// featureExpr returns sum(pixel * weight / (Width*Height)) over the
// non-zero weights of the feature at idx.
func (cm *CascadeModel) featureExpr(idx int) milp.Expr {
	c := cm.Cascade
	grid := c.featureGrid(idx)
	norm := float64(c.Width * c.Height)

	var expr milp.Expr
	for y, row := range grid {
		for x, w := range row {
			if w != 0 {
				expr = append(expr, milp.Term{Var: cm.PixelVar(x, y), Coef: w / norm})
			}
		}
	}
	return expr
}
