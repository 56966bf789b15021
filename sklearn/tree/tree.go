// Package tree implements a CART decision tree classifier.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func init() {
	model.Register("DecisionTreeClassifier", func() model.Model { return NewDecisionTreeClassifier() })
}

const leaf = -1

// node is one entry of the flattened tree. Children are indices into
// DecisionTreeClassifier.nodes; leaves have Left == Right == leaf.
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Counts    []float64
	Impurity  float64
	NSamples  int
	Depth     int
}

// DecisionTreeClassifier grows a binary tree greedily, splitting each node
// on the feature and midpoint threshold with the largest impurity decrease.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int

	// Learned state
	nodes        []node
	classes_     []int
	nClasses_    int
	importances_ []float64
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure.
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth limits the tree depth; 0 leaves it unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum size of each child.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// NewDecisionTreeClassifier creates a tree with gini impurity and no depth limit.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("unknown criterion %q", dt.criterion))
	}
	if dt.maxDepth < 0 || dt.minSamplesSplit < 2 || dt.minSamplesLeaf < 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit",
			"max_depth must be >= 0, min_samples_split >= 2 and min_samples_leaf >= 1")
	}
	return nil
}

// Fit grows the tree on X and the integer class labels in y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeClassifier.Fit")
	}
	if rows != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}

	seen := make(map[int]bool)
	dt.classes_ = nil
	for i := 0; i < rows; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			dt.classes_ = append(dt.classes_, c)
		}
	}
	sort.Ints(dt.classes_)
	dt.nClasses_ = len(dt.classes_)

	classIndex := make(map[int]int, dt.nClasses_)
	for k, c := range dt.classes_ {
		classIndex[c] = k
	}
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = classIndex[int(y.At(i, 0))]
	}

	b := &builder{
		tree:   dt,
		X:      X,
		labels: labels,
		gains:  make([]float64, cols),
	}
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	dt.nodes = dt.nodes[:0]
	b.grow(indices, 0)

	total := 0.0
	for _, g := range b.gains {
		total += g
	}
	dt.importances_ = b.gains
	if total > 0 {
		for j := range dt.importances_ {
			dt.importances_[j] /= total
		}
	}

	dt.state.SetFitted(cols, rows)
	return nil
}

type builder struct {
	tree   *DecisionTreeClassifier
	X      mat.Matrix
	labels []int
	gains  []float64
}

func (b *builder) counts(indices []int) []float64 {
	c := make([]float64, b.tree.nClasses_)
	for _, i := range indices {
		c[b.labels[i]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	var out float64
	switch b.tree.criterion {
	case "entropy":
		for _, c := range counts {
			if c > 0 {
				p := c / float64(n)
				out -= p * math.Log2(p)
			}
		}
	default:
		out = 1
		for _, c := range counts {
			p := c / float64(n)
			out -= p * p
		}
	}
	return out
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// grow appends the node for indices and its subtree, returning its index.
func (b *builder) grow(indices []int, depth int) int {
	dt := b.tree
	n := len(indices)
	counts := b.counts(indices)
	imp := b.impurity(counts, n)

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{
		Feature:  leaf,
		Left:     leaf,
		Right:    leaf,
		Counts:   counts,
		Impurity: imp,
		NSamples: n,
		Depth:    depth,
	})

	if imp == 0 || n < dt.minSamplesSplit || (dt.maxDepth > 0 && depth >= dt.maxDepth) {
		return id
	}
	best, ok := b.bestSplit(indices, imp)
	if !ok {
		return id
	}

	b.gains[best.feature] += float64(n) * best.gain
	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)

	nd := &dt.nodes[id]
	nd.Feature = best.feature
	nd.Threshold = best.threshold
	nd.Left = left
	nd.Right = right
	return id
}

// bestSplit scans features in order and thresholds in ascending order; the
// first strictly best split wins.
func (b *builder) bestSplit(indices []int, parent float64) (split, bool) {
	_, cols := b.X.Dims()
	n := len(indices)
	minLeaf := b.tree.minSamplesLeaf
	order := make([]int, n)

	var best split
	found := false
	for f := 0; f < cols; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, c int) bool {
			va, vc := b.X.At(order[a], f), b.X.At(order[c], f)
			if va != vc {
				return va < vc
			}
			return order[a] < order[c]
		})

		left := make([]float64, b.tree.nClasses_)
		right := b.counts(order)
		for k := 1; k < n; k++ {
			moved := b.labels[order[k-1]]
			left[moved]++
			right[moved]--

			lo, hi := b.X.At(order[k-1], f), b.X.At(order[k], f)
			if lo == hi || k < minLeaf || n-k < minLeaf {
				continue
			}
			weighted := (float64(k)*b.impurity(left, k) + float64(n-k)*b.impurity(right, n-k)) / float64(n)
			gain := parent - weighted
			if !found || gain > best.gain+1e-12 {
				found = true
				best = split{
					feature:   f,
					threshold: (lo + hi) / 2,
					gain:      gain,
					left:      append([]int(nil), order[:k]...),
					right:     append([]int(nil), order[k:]...),
				}
			}
		}
	}
	return best, found
}

func (dt *DecisionTreeClassifier) apply(X mat.Matrix, i int) *node {
	nd := &dt.nodes[0]
	for nd.Left != leaf {
		if X.At(i, nd.Feature) <= nd.Threshold {
			nd = &dt.nodes[nd.Left]
		} else {
			nd = &dt.nodes[nd.Right]
		}
	}
	return nd
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, cols)
}

// Predict returns the majority class of the leaf each row falls into.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		counts := dt.apply(X, i).Counts
		best := 0
		for k := range counts {
			if counts[k] > counts[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(dt.classes_[best]))
	}
	return out, nil
}

// PredictProba returns leaf class frequencies, one column per class.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		nd := dt.apply(X, i)
		for k, c := range nd.Counts {
			out.Set(i, k, c/float64(nd.NSamples))
		}
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := X.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// FeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), dt.importances_...)
}

// GetFeatureImportances is an alias of FeatureImportances.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return dt.FeatureImportances()
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, nd := range dt.nodes {
		if nd.Depth > depth {
			depth = nd.Depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for _, nd := range dt.nodes {
		if nd.Left == leaf {
			n++
		}
	}
	return n
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
	}
}

// SetParams sets hyperparameters; unknown keys are rejected.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	const owner = "DecisionTreeClassifier"
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.StringParam(owner, key, value, "gini", "entropy")
		case "max_depth":
			if value == nil {
				dt.maxDepth = 0
				continue
			}
			dt.maxDepth, err = model.IntParam(owner, key, value)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.IntParam(owner, key, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.IntParam(owner, key, value)
		default:
			err = model.UnknownParam(owner, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted tree with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Model {
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
	)
}

type treeState struct {
	Nodes       []node
	Classes     []int
	Importances []float64
	NFeatures   int
	NSamples    int
}

// MarshalBinary gob-encodes the fitted tree.
func (dt *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	if !dt.state.IsFitted() {
		return nil, nil
	}
	nFeatures, nSamples := dt.state.GetDimensions()
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeState{
		Nodes:       dt.nodes,
		Classes:     dt.classes_,
		Importances: dt.importances_,
		NFeatures:   nFeatures,
		NSamples:    nSamples,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode tree")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a tree produced by MarshalBinary.
func (dt *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var st treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "decode tree")
	}
	if len(st.Nodes) == 0 || len(st.Classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.UnmarshalBinary", "empty tree")
	}
	dt.nodes = st.Nodes
	dt.classes_ = st.Classes
	dt.nClasses_ = len(st.Classes)
	dt.importances_ = st.Importances
	dt.state.SetFitted(st.NFeatures, st.NSamples)
	return nil
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}
