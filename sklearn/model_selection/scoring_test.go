package model_selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func TestScoringResolver_Resolve(t *testing.T) {
	notice, warnings := collectWarnings()
	r := NewScoringResolver(WithNotice(notice))

	tests := []struct {
		id   string
		want string
	}{
		{"nmse", "neg_mean_squared_error"},
		{"MSE", "neg_mean_squared_error"},
		{"  neg_mse ", "neg_mean_squared_error"},
		{"rmse", "neg_root_mean_squared_error"},
		{"mae", "neg_mean_absolute_error"},
		{"nmape", "neg_mean_absolute_percentage_error"},
		{"acc", "accuracy"},
		{"Accuracy", "accuracy"},
		{"r2", "r2"},
		{"explained_variance", "explained_variance"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := r.Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Empty(t, *warnings)
}

func TestScoringResolver_DefaultWarnsOnce(t *testing.T) {
	notice, warnings := collectWarnings()
	r := NewScoringResolver(WithNotice(notice))

	empty, err := r.Resolve("")
	require.NoError(t, err)
	nmse, err := r.Resolve("nmse")
	require.NoError(t, err)
	assert.Equal(t, nmse, empty)

	_, err = r.Resolve("   ")
	require.NoError(t, err)

	require.Len(t, *warnings, 1)
	var w *errors.DefaultScoringWarning
	assert.True(t, errors.As((*warnings)[0], &w))
}

func TestScoringResolver_Unknown(t *testing.T) {
	r := NewScoringResolver()
	_, err := r.Resolve("f1_macro")
	require.Error(t, err)

	var unknown *errors.UnknownScoringError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "f1_macro", unknown.Scoring)
	assert.Contains(t, err.Error(), "accuracy")
}

func TestScoringResolver_Register(t *testing.T) {
	r := NewScoringResolver()
	require.Error(t, r.Register(Scorer{Name: "empty"}))

	require.NoError(t, r.Register(Scorer{
		Name: "Zero",
		Score: func(model.Predictor, mat.Matrix, mat.Matrix) (float64, error) {
			return 0, nil
		},
	}))
	got, err := r.Resolve("zero")
	require.NoError(t, err)
	assert.Equal(t, "zero", got)
	assert.Contains(t, r.Names(), "zero")
	assert.Equal(t, "accuracy", r.Aliases()["acc"])
}

func TestBuiltinScorers(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{1, 1, 3, 3})
	m := &stubA{}
	m.value = 1

	tests := []struct {
		name string
		want float64
	}{
		{"neg_mean_squared_error", -2},
		{"neg_root_mean_squared_error", -math.Sqrt(2)},
		{"neg_mean_absolute_error", -1},
		{"accuracy", 0.5},
	}
	r := NewScoringResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Scorer(tt.name)
			require.NoError(t, err)
			got, err := s.Score(m, X, y)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	acc, err := r.Scorer("acc")
	require.NoError(t, err)
	assert.Equal(t, Classification, acc.Task)
	assert.True(t, IsErrorScoring("neg_mean_squared_error"))
	assert.False(t, IsErrorScoring("accuracy"))
}
