package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/sklearn/linear_model"
)

func TestMaterialize(t *testing.T) {
	t.Run("factory", func(t *testing.T) {
		est, err := Materialize(model.Factory(newStubA))
		require.NoError(t, err)
		assert.Equal(t, "stubA", est.Name())
		assert.False(t, est.Shared())

		a, err := est.Spawn(Params{"x": 3.0})
		require.NoError(t, err)
		b, err := est.Spawn(nil)
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.Equal(t, 3.0, a.(*stubA).value)
		assert.Equal(t, 0.0, b.(*stubA).value)
	})

	t.Run("func returning error", func(t *testing.T) {
		_, err := Materialize(func() (model.Model, error) { return nil, errors.New("no data") })
		var estErr *errors.EstimatorError
		assert.True(t, errors.As(err, &estErr))
	})

	t.Run("cloneable instance", func(t *testing.T) {
		ridge := linear_model.NewRidge(linear_model.WithAlpha(2))
		est, err := Materialize(ridge)
		require.NoError(t, err)
		assert.Equal(t, "Ridge", est.Name())
		assert.False(t, est.Shared())

		m, err := est.Spawn(Params{"alpha": 5.0})
		require.NoError(t, err)
		assert.NotSame(t, ridge, m)
		assert.Equal(t, 2.0, ridge.GetParams()["alpha"])
		assert.Equal(t, 5.0, m.(*linear_model.Ridge).GetParams()["alpha"])
	})

	t.Run("shared instance is reset", func(t *testing.T) {
		stub := &stubA{}
		stub.value = 1
		est, err := Materialize(stub)
		require.NoError(t, err)
		assert.True(t, est.Shared())

		m, err := est.Spawn(Params{"x": 9.0})
		require.NoError(t, err)
		assert.Same(t, stub, m)
		assert.Equal(t, 9.0, stub.value)

		_, err = est.Spawn(nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, stub.value)
	})

	t.Run("constructor with options", func(t *testing.T) {
		est, err := Materialize(linear_model.NewRidge)
		require.NoError(t, err)
		assert.Equal(t, "Ridge", est.Name())
		assert.False(t, est.Shared())

		m, err := est.Spawn(Params{"alpha": 5.0})
		require.NoError(t, err)
		assert.Equal(t, 5.0, m.(*linear_model.Ridge).GetParams()["alpha"])
		fresh, err := est.Spawn(nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, fresh.(*linear_model.Ridge).GetParams()["alpha"])
	})

	t.Run("concrete constructors", func(t *testing.T) {
		est, err := Materialize(func() *stubA { return &stubA{} })
		require.NoError(t, err)
		assert.Equal(t, "stubA", est.Name())

		_, err = Materialize(func() (*stubA, error) { return nil, errors.New("no data") })
		var estErr *errors.EstimatorError
		require.True(t, errors.As(err, &estErr))
		assert.Contains(t, err.Error(), "factory failed")

		_, err = Materialize(func() *stubA { return nil })
		require.True(t, errors.As(err, &estErr))
		assert.Contains(t, err.Error(), "returned nil")
	})

	t.Run("rejected parameters", func(t *testing.T) {
		est, err := Materialize(model.Factory(newStubA))
		require.NoError(t, err)
		_, err = est.Spawn(Params{"y": 1.0})
		var estErr *errors.EstimatorError
		require.True(t, errors.As(err, &estErr))
		assert.Contains(t, err.Error(), "{y=1}")
	})
}

func TestMaterialize_MissingCapability(t *testing.T) {
	tests := []struct {
		name      string
		candidate interface{}
		want      string
	}{
		{"no fit", predictOnly{}, "Fit"},
		{"not a model", 42, "Fit or Predict"},
		{"factory with arguments", func(v float64) *stubA { return &stubA{} }, "no required arguments"},
		{"factory of non-models", func() int { return 1 }, "must return a model.Model"},
		{"factory with extra results", func() (*stubA, int) { return &stubA{}, 0 }, "must return a model.Model"},
		{"nil", nil, "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize(tt.candidate)
			require.Error(t, err)
			var estErr *errors.EstimatorError
			require.True(t, errors.As(err, &estErr))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
