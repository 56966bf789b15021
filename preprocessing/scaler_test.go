package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	var sum float64
	for i := 0; i < 4; i++ {
		sum += out.At(i, 0)
		assert.InDelta(t, 0, out.At(i, 1), 1e-12)
	}
	assert.InDelta(t, 0, sum, 1e-12)

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	// X itself is untouched.
	assert.Equal(t, 1.0, X.At(0, 0))
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault()
	_, err := s.Transform(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 1, out))

	bad := NewMinMaxScaler([2]float64{1, 0})
	assert.Error(t, bad.Fit(X))
}

func TestNew(t *testing.T) {
	for _, name := range []string{"standard", "minmax", "StandardScaler"} {
		tr, err := New(name)
		require.NoError(t, err, name)
		assert.NotNil(t, tr)
	}
	_, err := New("pca")
	assert.Error(t, err)
}

func TestStandardScaler_LargeInput(t *testing.T) {
	const rows = 2*parallelRowThreshold + 7
	X := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		X.Set(i, 0, float64(i%2))
	}
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		want := 1.0
		if i%2 == 0 {
			want = -1.0
		}
		assert.InDelta(t, want, out.At(i, 0), 0.01, "row %d", i)
	}
}
