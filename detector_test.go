package invhaar

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_SquareCascade(t *testing.T) {
	c := loadString(t, squareCascadeXML)

	tests := map[string]struct {
		value float64
		want  int
	}{
		"bright window passes": {value: 200, want: 1},
		"threshold is inclusive": {value: 128, want: 1},
		"dark window fails first stage": {value: 100, want: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Detect(c, uniformGrid(2, 2, tc.value))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_StopsAtFirstRejectingStage(t *testing.T) {
	// Stage 0 always passes, stage 1 always fails and stage 2 would pass.
	c := mustCascade(t, 2, 2, []Stage{
		stump(0, -1, 1, 1, 0),
		stump(0, -1, -1, -1, 0),
		stump(0, -1, 1, 1, 0),
	}, []Feature{{{X: 0, Y: 0, W: 2, H: 2, Weight: 1}}})

	var visited []int
	res, err := Evaluate(c, uniformGrid(2, 2, 50), func(stage, _ int) {
		visited = append(visited, stage)
	})
	require.NoError(t, err)

	assert.False(t, res.Accepted)
	assert.Equal(t, 1, res.Stage)
	assert.Equal(t, -1, res.Code())
	assert.Equal(t, []int{0, 1}, visited)
	assert.Equal(t, []float64{1, -1}, res.Scores)
}

func TestEvaluate_AcceptsWhenEveryStagePasses(t *testing.T) {
	c := mustCascade(t, 2, 1, []Stage{
		{
			Threshold: 0.5,
			WeakClassifiers: []WeakClassifier{
				{FeatureIdx: 0, Threshold: 0.1, FailVal: -1, PassVal: 1},
				{FeatureIdx: 1, Threshold: 0.1, FailVal: 1, PassVal: -1},
			},
		},
		stump(0, 0, 0, 3, 2),
	}, []Feature{
		{{X: 0, Y: 0, W: 1, H: 1, Weight: 1}},
		{{X: 1, Y: 0, W: 1, H: 1, Weight: 1}},
	})

	var calls int
	res, err := Evaluate(c, Grid{{255, 0}}, func(int, int) { calls++ })
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.Code())
	assert.Equal(t, 3, calls)
	assert.Equal(t, []float64{2, 3}, res.Scores)
}

func TestEvaluate_MatchingSizeIsNotResampled(t *testing.T) {
	// A 1x1 window makes the response value/256. The threshold sits between
	// 100.3/256 and the nearest 8-bit intensity, so any quantization flips
	// the verdict.
	c := mustCascade(t, 1, 1, []Stage{stump(0, 100.2/IntensityScale, -1, 1, 0)},
		[]Feature{{{X: 0, Y: 0, W: 1, H: 1, Weight: 1}}})

	img := Grid{{100.3}}
	got, err := Detect(c, img)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, Grid{{100.3}}, img, "input must not be modified")
}

func TestEvaluate_ResamplesMismatchedSize(t *testing.T) {
	c := loadString(t, squareCascadeXML)

	got, err := Detect(c, uniformGrid(6, 4, 180))
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = Detect(c, uniformGrid(5, 5, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestEvaluate_ResampleKeepsFullPrecision(t *testing.T) {
	for name, tc := range map[string]struct {
		threshold float64
		value     float64
	}{
		"above 8-bit range": {threshold: 1.1, value: 300},
		"between levels":    {threshold: 100.2 / IntensityScale, value: 100.3},
	} {
		t.Run(name, func(t *testing.T) {
			c := mustCascade(t, 1, 1, []Stage{stump(0, tc.threshold, -1, 1, 0)},
				[]Feature{{{X: 0, Y: 0, W: 1, H: 1, Weight: 1}}})

			got, err := Detect(c, uniformGrid(2, 2, tc.value))
			require.NoError(t, err)
			assert.Equal(t, 1, got)
		})
	}
}

func TestResizeArea(t *testing.T) {
	t.Run("fractional overlap", func(t *testing.T) {
		src := Grid{{0, 3, 6}, {0, 3, 6}, {0, 3, 6}}
		got := resizeArea(src, 2, 2)
		want := Grid{{1, 5}, {1, 5}}
		for y := range want {
			for x := range want[y] {
				assert.InDelta(t, want[y][x], got[y][x], 1e-12)
			}
		}
	})

	t.Run("preserves the mean", func(t *testing.T) {
		src := Grid{{512, 400, 1000, 7}, {300, 300, 0.5, 0}}
		got := resizeArea(src, 3, 1)
		require.Len(t, got, 1)
		require.Len(t, got[0], 3)
		assert.InDelta(t, src.Sum()/8, got.Sum()/3, 1e-9)
		assert.Greater(t, got[0][0], 255.0)
	})

	t.Run("upscale", func(t *testing.T) {
		got := resizeArea(Grid{{300}}, 2, 3)
		size, ok := got.Size()
		require.True(t, ok)
		assert.Equal(t, 2, size.X)
		assert.Equal(t, 3, size.Y)
		for _, row := range got {
			for _, v := range row {
				assert.InDelta(t, 300, v, 1e-9)
			}
		}
	})
}

func TestEvaluate_InvalidDimensions(t *testing.T) {
	c := loadString(t, squareCascadeXML)

	for name, img := range map[string]Grid{
		"nil":    nil,
		"empty":  {},
		"ragged": {{1, 2}, {3}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Detect(c, img)
			var derr *DimensionError
			require.True(t, errors.As(err, &derr), "expected a DimensionError, got %v", err)
			assert.Equal(t, 2, derr.Want.X)
			assert.Equal(t, 2, derr.Want.Y)
		})
	}
}
