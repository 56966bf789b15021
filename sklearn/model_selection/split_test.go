package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func TestKFold(t *testing.T) {
	t.Run("contiguous folds", func(t *testing.T) {
		X, y := onesData(10)
		folds, err := NewKFold(3, false, 0).Split(X, y)
		require.NoError(t, err)
		require.Len(t, folds, 3)

		assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
		assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
		assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
		assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)
	})

	t.Run("shuffle covers every row once", func(t *testing.T) {
		X, y := onesData(20)
		folds, err := NewKFold(4, true, 42).Split(X, y)
		require.NoError(t, err)

		seen := make(map[int]int)
		for _, fold := range folds {
			assert.Len(t, fold.TestIndices, 5)
			assert.Len(t, fold.TrainIndices, 15)
			for _, idx := range fold.TestIndices {
				seen[idx]++
			}
		}
		for i := 0; i < 20; i++ {
			assert.Equal(t, 1, seen[i], "row %d", i)
		}

		again, err := NewKFold(4, true, 42).Split(X, y)
		require.NoError(t, err)
		assert.Equal(t, folds, again)
	})

	t.Run("invalid splits", func(t *testing.T) {
		X, y := onesData(3)
		for _, n := range []int{1, 4} {
			_, err := NewKFold(n, false, 0).Split(X, y)
			var cfg *errors.InvalidConfigurationError
			assert.True(t, errors.As(err, &cfg), "n_splits=%d", n)
		}
	})
}

func TestStratifiedKFold(t *testing.T) {
	t.Run("class balance", func(t *testing.T) {
		X := mat.NewDense(8, 1, nil)
		y := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 0, 0, 0, 0})
		folds, err := NewStratifiedKFold(2, false, 0).Split(X, y)
		require.NoError(t, err)

		assert.Equal(t, []int{0, 1, 4, 5}, folds[0].TestIndices)
		assert.Equal(t, []int{2, 3, 6, 7}, folds[1].TestIndices)
	})

	t.Run("empty test fold", func(t *testing.T) {
		X := mat.NewDense(3, 1, nil)
		y := mat.NewDense(3, 1, []float64{0, 0, 1})
		_, err := NewStratifiedKFold(3, false, 0).Split(X, y)
		var cfg *errors.InvalidConfigurationError
		assert.True(t, errors.As(err, &cfg))
	})
}

func TestPrefixRows(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	got := prefixRows(X, 2)
	assert.Equal(t, []float64{1, 2, 3, 4}, got.RawMatrix().Data)
}
