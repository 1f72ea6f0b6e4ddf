package invhaar

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Rect is one weighted rectangle of a Haar-like feature.
type Rect struct {
	X, Y, W, H int
	Weight     float64
}

// Feature is an ordered list of weighted rectangles.
// Overlapping rectangles add up.
type Feature []Rect

// WeakClassifier is a decision stump over a single feature: it yields
// PassVal when the feature response is >= Threshold and FailVal otherwise.
type WeakClassifier struct {
	FeatureIdx int
	Threshold  float64
	FailVal    float64
	PassVal    float64
}

// Stage groups weak classifiers whose summed output must reach Threshold.
type Stage struct {
	Threshold       float64
	WeakClassifiers []WeakClassifier
}

// Cascade is a boosted rejection cascade over a Width x Height window.
// It must not be modified once it is in use.
type Cascade struct {
	Width    int
	Height   int
	Stages   []Stage
	Features []Feature

	grids *featureCache
}

// NewCascade validates the given parts and assembles a Cascade.
func NewCascade(width, height int, stages []Stage, features []Feature) (*Cascade, error) {
	c := &Cascade{
		Width:    width,
		Height:   height,
		Stages:   stages,
		Features: features,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.grids = newFeatureCache(len(features))
	return c, nil
}

// Validate checks the structural invariants of the cascade.
func (c *Cascade) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return &ParseError{Path: "cascade", Reason: "window size must be positive, got " +
			strconv.Itoa(c.Width) + "x" + strconv.Itoa(c.Height)}
	}
	for si, st := range c.Stages {
		for ci, wc := range st.WeakClassifiers {
			if wc.FeatureIdx < 0 || wc.FeatureIdx >= len(c.Features) {
				return &ParseError{
					Path:   "cascade/stages/" + strconv.Itoa(si) + "/weakClassifiers/" + strconv.Itoa(ci),
					Reason: "feature index " + strconv.Itoa(wc.FeatureIdx) + " out of range",
				}
			}
		}
	}
	for fi, f := range c.Features {
		for ri, r := range f {
			if r.X < 0 || r.Y < 0 || r.W < 0 || r.H < 0 {
				return &ParseError{
					Path:   "cascade/features/" + strconv.Itoa(fi) + "/rects/" + strconv.Itoa(ri),
					Reason: "rectangle has negative geometry",
				}
			}
		}
	}
	return nil
}

// ClassifierCount returns the number of weak classifiers over all stages.
func (c *Cascade) ClassifierCount() int {
	var n int
	for _, st := range c.Stages {
		n += len(st.WeakClassifiers)
	}
	return n
}

// node is a generic element of the cascade document.
type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

// child returns the first direct child with the given tag.
func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

// find walks a slash separated path of tags.
func (n *node) find(path string) *node {
	cur := n
	for _, name := range strings.Split(path, "/") {
		if cur = cur.child(name); cur == nil {
			return nil
		}
	}
	return cur
}

func (n *node) fields() []string { return strings.Fields(n.Text) }

// LoadFile reads a cascade description from the named file.
func LoadFile(path string) (*Cascade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open the cascade file")
	}
	defer f.Close()

	return Load(f)
}

// Load parses an OpenCV style cascade document. Stages, weak classifiers,
// features and rectangles keep their document order.
func Load(r io.Reader) (*Cascade, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, &ParseError{Reason: "malformed document", Err: err}
	}

	width, err := intNode(&root, "cascade/width")
	if err != nil {
		return nil, err
	}
	height, err := intNode(&root, "cascade/height")
	if err != nil {
		return nil, err
	}

	stagesNode := root.find("cascade/stages")
	if stagesNode == nil {
		return nil, &ParseError{Path: "cascade/stages", Reason: "missing node"}
	}
	stages := make([]Stage, 0, len(stagesNode.Nodes))
	for si := range stagesNode.Nodes {
		st, err := parseStage(&stagesNode.Nodes[si], si)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}

	featuresNode := root.find("cascade/features")
	if featuresNode == nil {
		return nil, &ParseError{Path: "cascade/features", Reason: "missing node"}
	}
	features := make([]Feature, 0, len(featuresNode.Nodes))
	for fi := range featuresNode.Nodes {
		f, err := parseFeature(&featuresNode.Nodes[fi], fi)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}

	return NewCascade(width, height, stages, features)
}

func parseStage(n *node, idx int) (Stage, error) {
	path := "cascade/stages/" + strconv.Itoa(idx)

	thrNode := n.child("stageThreshold")
	if thrNode == nil {
		return Stage{}, &ParseError{Path: path + "/stageThreshold", Reason: "missing node"}
	}
	threshold, err := parseFloat(path+"/stageThreshold", strings.TrimSpace(thrNode.Text))
	if err != nil {
		return Stage{}, err
	}

	wcNode := n.child("weakClassifiers")
	if wcNode == nil {
		return Stage{}, &ParseError{Path: path + "/weakClassifiers", Reason: "missing node"}
	}

	st := Stage{
		Threshold:       threshold,
		WeakClassifiers: make([]WeakClassifier, 0, len(wcNode.Nodes)),
	}
	for ci := range wcNode.Nodes {
		wc, err := parseWeakClassifier(&wcNode.Nodes[ci], path+"/weakClassifiers/"+strconv.Itoa(ci))
		if err != nil {
			return Stage{}, err
		}
		st.WeakClassifiers = append(st.WeakClassifiers, wc)
	}
	return st, nil
}

func parseWeakClassifier(n *node, path string) (WeakClassifier, error) {
	internal := n.child("internalNodes")
	if internal == nil {
		return WeakClassifier{}, &ParseError{Path: path + "/internalNodes", Reason: "missing node"}
	}
	sp := internal.fields()
	if len(sp) != 4 {
		return WeakClassifier{}, &ParseError{
			Path:   path + "/internalNodes",
			Reason: "expected 4 values, got " + strconv.Itoa(len(sp)),
		}
	}
	// Only single split stumps are supported: left and right children must be leaves.
	if sp[0] != "0" || sp[1] != "-1" {
		return WeakClassifier{}, &ParseError{
			Path:   path + "/internalNodes",
			Reason: "unsupported decision node " + strconv.Quote(sp[0]+" "+sp[1]),
		}
	}
	featureIdx, err := parseInt(path+"/internalNodes", sp[2])
	if err != nil {
		return WeakClassifier{}, err
	}
	threshold, err := parseFloat(path+"/internalNodes", sp[3])
	if err != nil {
		return WeakClassifier{}, err
	}

	leaves := n.child("leafValues")
	if leaves == nil {
		return WeakClassifier{}, &ParseError{Path: path + "/leafValues", Reason: "missing node"}
	}
	sp = leaves.fields()
	if len(sp) != 2 {
		return WeakClassifier{}, &ParseError{
			Path:   path + "/leafValues",
			Reason: "expected 2 values, got " + strconv.Itoa(len(sp)),
		}
	}
	failVal, err := parseFloat(path+"/leafValues", sp[0])
	if err != nil {
		return WeakClassifier{}, err
	}
	passVal, err := parseFloat(path+"/leafValues", sp[1])
	if err != nil {
		return WeakClassifier{}, err
	}

	return WeakClassifier{
		FeatureIdx: featureIdx,
		Threshold:  threshold,
		FailVal:    failVal,
		PassVal:    passVal,
	}, nil
}

func parseFeature(n *node, idx int) (Feature, error) {
	path := "cascade/features/" + strconv.Itoa(idx)
	rects := n.child("rects")
	if rects == nil {
		return nil, &ParseError{Path: path + "/rects", Reason: "missing node"}
	}

	f := make(Feature, 0, len(rects.Nodes))
	for ri := range rects.Nodes {
		rpath := path + "/rects/" + strconv.Itoa(ri)
		sp := rects.Nodes[ri].fields()
		if len(sp) != 5 {
			return nil, &ParseError{Path: rpath, Reason: "expected 5 values, got " + strconv.Itoa(len(sp))}
		}
		var geom [4]int
		for i := range geom {
			v, err := parseInt(rpath, sp[i])
			if err != nil {
				return nil, err
			}
			geom[i] = v
		}
		weight, err := parseFloat(rpath, sp[4])
		if err != nil {
			return nil, err
		}
		f = append(f, Rect{X: geom[0], Y: geom[1], W: geom[2], H: geom[3], Weight: weight})
	}
	return f, nil
}

func intNode(root *node, path string) (int, error) {
	n := root.find(path)
	if n == nil {
		return 0, &ParseError{Path: path, Reason: "missing node"}
	}
	return parseInt(path, strings.TrimSpace(n.Text))
}

func parseInt(path, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Path: path, Reason: "invalid integer " + strconv.Quote(s), Err: err}
	}
	return v, nil
}

func parseFloat(path, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Path: path, Reason: "invalid number " + strconv.Quote(s), Err: err}
	}
	return v, nil
}
