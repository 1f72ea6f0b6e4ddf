package invhaar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// squareCascadeXML is a 2x2 window with a single stage holding a single
// classifier over a 2x2 all-ones feature.
const squareCascadeXML = `<?xml version="1.0"?>
<opencv_storage>
<cascade type_id="opencv-cascade-classifier"><stageType>BOOST</stageType>
  <featureType>HAAR</featureType>
  <height>2</height>
  <width>2</width>
  <stageNum>1</stageNum>
  <stages>
    <!-- stage 0 -->
    <_>
      <maxWeakCount>1</maxWeakCount>
      <stageThreshold>0.</stageThreshold>
      <weakClassifiers>
        <_>
          <internalNodes>
            0 -1 0 5.0000000000000000e-01</internalNodes>
          <leafValues>
            -1. 1.</leafValues></_></weakClassifiers></_></stages>
  <features>
    <_>
      <rects>
        <_>
          0 0 2 2 1.</_></rects>
      <tilted>0</tilted></_></features></cascade>
</opencv_storage>
`

func loadString(t *testing.T, doc string) *Cascade {
	t.Helper()
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	return c
}

func mustCascade(t *testing.T, width, height int, stages []Stage, features []Feature) *Cascade {
	t.Helper()
	c, err := NewCascade(width, height, stages, features)
	require.NoError(t, err)
	return c
}

// uniformGrid returns a height x width grid filled with v.
func uniformGrid(height, width int, v float64) Grid {
	g := NewGrid(height, width)
	for y := range g {
		for x := range g[y] {
			g[y][x] = v
		}
	}
	return g
}

// stump is a stage of one classifier over feature idx.
func stump(idx int, threshold, failVal, passVal, stageThreshold float64) Stage {
	return Stage{
		Threshold: stageThreshold,
		WeakClassifiers: []WeakClassifier{
			{FeatureIdx: idx, Threshold: threshold, FailVal: failVal, PassVal: passVal},
		},
	}
}
