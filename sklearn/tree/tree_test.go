package tree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_Fit(t *testing.T) {
	tests := []struct {
		name string
		X    *mat.Dense
		y    *mat.Dense
		opts []Option
	}{
		{
			name: "binary",
			X:    mat.NewDense(8, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1, 3, 3, 3, 4, 4, 3, 4, 4}),
			y:    mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1}),
			opts: []Option{WithCriterion("gini"), WithMaxDepth(5)},
		},
		{
			// class 0 when both features agree
			name: "xor",
			X:    mat.NewDense(8, 2, []float64{0, 0, 0, 0.1, 0.1, 1, 0, 0.9, 1, 0, 0.9, 0, 1, 1, 0.9, 0.9}),
			y:    mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0}),
			opts: []Option{WithMaxDepth(5), WithMinSamplesLeaf(1)},
		},
		{
			name: "multiclass",
			X:    mat.NewDense(9, 2, []float64{0, 0, 0, 1, 1, 0, 3, 3, 3, 4, 4, 3, 6, 6, 6, 7, 7, 6}),
			y:    mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2}),
			opts: []Option{WithMaxDepth(5)},
		},
		{
			name: "entropy",
			X:    mat.NewDense(6, 2, []float64{0, 0, 0, 1, 1, 0, 2, 2, 2, 3, 3, 2}),
			y:    mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1}),
			opts: []Option{WithCriterion("entropy"), WithMaxDepth(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			require.NoError(t, dt.Fit(tt.X, tt.y))
			assert.Equal(t, 1.0, dt.Score(tt.X, tt.y))

			probas, err := dt.PredictProba(tt.X)
			require.NoError(t, err)
			rows, cols := probas.Dims()
			assert.Equal(t, dt.nClasses_, cols)
			for i := 0; i < rows; i++ {
				sum := 0.0
				for j := 0; j < cols; j++ {
					sum += probas.At(i, j)
				}
				assert.InDelta(t, 1, sum, 1e-9)
				assert.Equal(t, 1.0, probas.At(i, int(tt.y.At(i, 0))), "pure leaves")
			}
		})
	}
}

func TestDecisionTreeClassifier_Generalizes(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1, 3, 3, 3, 4, 4, 3, 4, 4})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{0.5, 0.5, 3.5, 3.5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, mat.Col(nil, 0, pred))
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []float64{1, 0, 0}, dt.FeatureImportances())
	assert.Equal(t, dt.FeatureImportances(), dt.GetFeatureImportances())
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_Limits(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}
	shallow := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.GetDepth(), 2)

	small := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, small.Fit(X.Slice(0, 10, 0, 2), y.Slice(0, 10, 0, 1)))
	assert.LessOrEqual(t, small.GetNLeaves(), 5)
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Equal(t, 0, params["max_depth"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4.0,
		"min_samples_leaf":  int64(2),
	}))
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)

	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": nil}))
	assert.Equal(t, 0, dt.maxDepth)

	var cfg *errors.InvalidConfigurationError
	assert.True(t, errors.As(dt.SetParams(map[string]interface{}{"criterion": "mse"}), &cfg))
	assert.True(t, errors.As(dt.SetParams(map[string]interface{}{"splitter": "best"}), &cfg))

	clone := dt.Clone().(*DecisionTreeClassifier)
	assert.Equal(t, dt.GetParams(), clone.GetParams())
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = dt.PredictProba(X)
	assert.Error(t, err)

	assert.Error(t, NewDecisionTreeClassifier(WithMinSamplesLeaf(0)).Fit(separable()))
}

func TestDecisionTreeClassifier_Snapshot(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"))
	require.NoError(t, dt.Fit(X, y))

	snap, err := model.TakeSnapshot(dt)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, model.SaveToWriter(snap, &buf))
	var decoded model.Snapshot
	require.NoError(t, model.LoadFromReader(&decoded, &buf))

	restored, err := decoded.Restore()
	require.NoError(t, err)
	got := restored.(*DecisionTreeClassifier)
	assert.Equal(t, "entropy", got.criterion)
	assert.Equal(t, dt.GetNLeaves(), got.GetNLeaves())
	assert.Equal(t, 1.0, got.Score(X, y))
}
