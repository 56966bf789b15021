package model_selection

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// CVFold represents a single cross-validation fold
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFoldSplitter is the interface for cross-validation splitters
type KFoldSplitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
}

// KFold partitions rows into NSplits contiguous test folds. The first
// n % NSplits folds get one extra row.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new KFold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold
func (kf *KFold) Split(X, _ mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold.Split", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assignment := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		for _, idx := range indices[current : current+testSize] {
			assignment[idx] = i
		}
		current += testSize
	}
	return buildFolds(kf.NSplits, assignment), nil
}

// StratifiedKFold preserves class proportions in every test fold. Classes
// are visited in ascending label order and each class's rows are dealt to
// folds in contiguous chunks, so the result is deterministic.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a new StratifiedKFold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold.Split", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "labels are required")
	}

	byClass := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
	}

	assignment := make([]int, nSamples)
	sizes := make([]int, skf.NSplits)
	for _, label := range labels {
		members := byClass[label]
		if r != nil {
			r.Shuffle(len(members), func(i, j int) {
				members[i], members[j] = members[j], members[i]
			})
		}
		foldSize := len(members) / skf.NSplits
		remainder := len(members) % skf.NSplits
		current := 0
		for f := 0; f < skf.NSplits; f++ {
			n := foldSize
			if f < remainder {
				n++
			}
			for _, idx := range members[current : current+n] {
				assignment[idx] = f
			}
			sizes[f] += n
			current += n
		}
	}

	for f, n := range sizes {
		if n == 0 {
			return nil, errors.NewInvalidConfigurationError("StratifiedKFold.Split", "cv_folds",
				fmt.Sprintf("test fold %d would be empty; every class has fewer than %d members", f, skf.NSplits),
				skf.NSplits)
		}
	}
	return buildFolds(skf.NSplits, assignment), nil
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewInvalidConfigurationError(op, "cv_folds", "must be at least 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewInvalidConfigurationError(op, "cv_folds",
			fmt.Sprintf("cannot exceed the number of samples (%d)", nSamples), nSplits)
	}
	return nil
}

// buildFolds turns a row-to-fold assignment into folds with ascending
// indices.
func buildFolds(nSplits int, assignment []int) []CVFold {
	folds := make([]CVFold, nSplits)
	for idx, f := range assignment {
		for g := range folds {
			if g == f {
				folds[g].TestIndices = append(folds[g].TestIndices, idx)
			} else {
				folds[g].TrainIndices = append(folds[g].TrainIndices, idx)
			}
		}
	}
	return folds
}

// splitterFor picks StratifiedKFold for classification scorers and KFold
// otherwise.
func splitterFor(task Task, nSplits int) KFoldSplitter {
	if task == Classification {
		return NewStratifiedKFold(nSplits, false, 0)
	}
	return NewKFold(nSplits, false, 0)
}

// extractRows copies the given rows of X into a new matrix.
func extractRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// prefixRows copies the first n rows of X.
func prefixRows(X mat.Matrix, n int) *mat.Dense {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return extractRows(X, indices)
}
