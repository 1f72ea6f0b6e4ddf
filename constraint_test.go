package invhaar

import (
	"context"
	"testing"

	"github.com/esimov/invhaar/milp"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leftColumnCascade needs the whole 2x2 window bright while keeping its left
// column dark: the second classifier is rewarded for failing.
func leftColumnCascade(t *testing.T) *Cascade {
	return mustCascade(t, 2, 2, []Stage{{
		Threshold: 1.5,
		WeakClassifiers: []WeakClassifier{
			{FeatureIdx: 0, Threshold: 0.5, FailVal: -1, PassVal: 1},
			{FeatureIdx: 1, Threshold: 0.25, FailVal: 1, PassVal: -1},
		},
	}}, []Feature{
		{{X: 0, Y: 0, W: 2, H: 2, Weight: 1}},
		{{X: 0, Y: 0, W: 1, H: 2, Weight: 1}},
	})
}

func TestBuildModel_Variables(t *testing.T) {
	cm, err := BuildModel(context.Background(), loadString(t, squareCascadeXML))
	require.NoError(t, err)

	var names []string
	for _, v := range cm.Model.Variables() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"pixel_0_0", "pixel_1_0", "pixel_0_1", "pixel_1_1", "feature_0"}, names)

	for _, v := range cm.PixelVars() {
		def := cm.Model.Variable(v)
		assert.Equal(t, milp.Continuous, def.Kind)
		assert.Equal(t, 0.0, def.Lower)
		assert.Equal(t, 1.0, def.Upper)
	}
	f, ok := cm.FeatureVar(0)
	require.True(t, ok)
	assert.Equal(t, milp.Binary, cm.Model.Variable(f).Kind)
	assert.Equal(t, "pixel_1_0", cm.Model.Variable(cm.PixelVar(1, 0)).Name)
	assert.Equal(t, DefaultModelName, cm.Model.Name)
	assert.Zero(t, cm.Epsilon)
}

func TestBuildModel_PassingClassifier(t *testing.T) {
	cm, err := BuildModel(context.Background(), loadString(t, squareCascadeXML))
	require.NoError(t, err)

	f, _ := cm.FeatureVar(0)
	want := []milp.Constraint{
		{
			Name: "stage_0_classifier_0",
			Expr: milp.Expr{
				{Var: cm.PixelVar(0, 0), Coef: 0.25},
				{Var: cm.PixelVar(1, 0), Coef: 0.25},
				{Var: cm.PixelVar(0, 1), Coef: 0.25},
				{Var: cm.PixelVar(1, 1), Coef: 0.25},
				{Var: f, Coef: -0.5},
			},
			Rel: milp.GreaterEq,
			RHS: 0,
		},
		{
			Name: "stage_0",
			Expr: milp.Expr{{Var: f, Coef: 2}},
			Rel:  milp.GreaterEq,
			RHS:  1,
		},
	}
	if diff := cmp.Diff(want, cm.Model.Constraints()); diff != "" {
		t.Errorf("constraints mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildModel_FailingClassifierWithEpsilon(t *testing.T) {
	const eps = 0.01
	cm, err := BuildModel(context.Background(), leftColumnCascade(t), WithEpsilon(eps), WithWorkers(2))
	require.NoError(t, err)

	cons := cm.Model.Constraints()
	require.Len(t, cons, 3)

	f0, _ := cm.FeatureVar(0)
	assert.Equal(t, milp.GreaterEq, cons[0].Rel)
	assert.Equal(t, milp.Term{Var: f0, Coef: -(0.5 + eps)}, cons[0].Expr[len(cons[0].Expr)-1])

	f1, _ := cm.FeatureVar(1)
	want := milp.Constraint{
		Name: "stage_0_classifier_1",
		Expr: milp.Expr{
			{Var: cm.PixelVar(0, 0), Coef: 0.25},
			{Var: cm.PixelVar(0, 1), Coef: 0.25},
			{Var: f1, Coef: 0.25 - eps},
		},
		Rel: milp.LessEq,
		RHS: 0.25 - eps,
	}
	assert.Equal(t, want, cons[1])

	stage := cons[2]
	assert.Equal(t, "stage_0", stage.Name)
	assert.Equal(t, milp.Expr{{Var: f0, Coef: 2}, {Var: f1, Coef: -2}}, stage.Expr)
	assert.InDelta(t, 1.5+eps, stage.RHS, 1e-12)
}

func TestBuildModel_SharedAndUnusedFeatures(t *testing.T) {
	c := mustCascade(t, 1, 1, []Stage{
		stump(2, 0.1, -1, 1, 0),
		stump(2, 0.2, -1, 1, 0),
	}, []Feature{
		{{X: 0, Y: 0, W: 1, H: 1, Weight: 1}},
		{{X: 0, Y: 0, W: 1, H: 1, Weight: 1}},
		{{X: 0, Y: 0, W: 1, H: 1, Weight: 0}},
	})

	cm, err := BuildModel(context.Background(), c)
	require.NoError(t, err)

	st := cm.Model.Stats()
	assert.Equal(t, 1, st.Continuous)
	assert.Equal(t, 1, st.Binary)
	assert.Equal(t, 4, st.Constraints)

	_, ok := cm.FeatureVar(0)
	assert.False(t, ok)
	f, ok := cm.FeatureVar(2)
	require.True(t, ok)
	// Zero weights contribute no pixel terms.
	assert.Equal(t, milp.Expr{{Var: f, Coef: -0.1}}, cm.Model.Constraints()[0].Expr)
}

func TestBuildModel_Errors(t *testing.T) {
	c := loadString(t, squareCascadeXML)

	_, err := BuildModel(context.Background(), c, WithEpsilon(-1))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = BuildModel(ctx, c)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = BuildModel(context.Background(), &Cascade{Width: 0, Height: 1})
	assert.Error(t, err)
}

func TestCascadeModel_Grid(t *testing.T) {
	cm, err := BuildModel(context.Background(), loadString(t, squareCascadeXML), WithName("grid"))
	require.NoError(t, err)
	assert.Equal(t, "grid", cm.Model.Name)

	sol := &milp.Solution{Values: []float64{0, 0.5, 1, 0.25, 1}}
	assert.Equal(t, Grid{{0, 128}, {256, 64}}, cm.Grid(sol))
}
