package errors

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvalidConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		grid    int
	}{
		{
			name:    "length mismatch",
			err:     NewInvalidConfigurationError("MultiSearch.Run", "grids", "length must match estimators", "3 != 2"),
			wantMsg: "searchcv: MultiSearch.Run: invalid configuration for 'grids': length must match estimators (got: 3 != 2)",
			grid:    -1,
		},
		{
			name:    "grid index",
			err:     NewInvalidGridError("GridSearch.Fit", 1, "alpha", "no candidate values"),
			wantMsg: "searchcv: GridSearch.Fit: invalid configuration for 'alpha': no candidate values (grid 1)",
			grid:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())

			var cfgErr *InvalidConfigurationError
			require.True(t, As(tt.err, &cfgErr))
			assert.Equal(t, tt.grid, cfgErr.GridIndex)

			formatted := fmt.Sprintf("%+v", tt.err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"), "expected stack trace in %s", formatted)
		})
	}
}

func TestNewEstimatorError(t *testing.T) {
	cause := fmt.Errorf("factory exploded")
	err := NewEstimatorError("*main.Broken", "factory failed", cause)

	var estErr *EstimatorError
	require.True(t, As(err, &estErr))
	assert.Equal(t, "*main.Broken", estErr.Estimator)
	assert.True(t, Is(err, cause))
	assert.Equal(t, "searchcv: estimator *main.Broken: factory failed: factory exploded", err.Error())
}

func TestNewUnknownScoringError(t *testing.T) {
	err := NewUnknownScoringError("f1_macro", []string{"r2", "accuracy"})

	var scErr *UnknownScoringError
	require.True(t, As(err, &scErr))
	assert.Equal(t, "f1_macro", scErr.Scoring)
	assert.Equal(t, `searchcv: unknown scoring "f1_macro"; known scorers: accuracy, r2`, err.Error())
	// Known must not be reordered in place.
	assert.Equal(t, []string{"r2", "accuracy"}, scErr.Known)
}

func TestSerializationError(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		err := NewSerializationError("Ridge", "best_params.solver", "func()")
		assert.Equal(t, `searchcv: cannot serialize entry "Ridge" key "best_params.solver" of type func()`, err.Error())
	})

	t.Run("wrapped cause stays visible", func(t *testing.T) {
		err := WrapSerializationError("/tmp/x.results", fs.ErrNotExist)
		var serErr *SerializationError
		require.True(t, As(err, &serErr))
		assert.True(t, Is(err, fs.ErrNotExist))
	})
}

func TestSearchError(t *testing.T) {
	cause := NewValueError("Stub.Fit", "boom")
	err := NewSearchError("Stub", 3, 1, "accuracy", cause)

	var searchErr *SearchError
	require.True(t, As(err, &searchErr))
	assert.Equal(t, 3, searchErr.Candidate)
	assert.Equal(t, 1, searchErr.Fold)

	var valErr *ValueError
	assert.True(t, As(err, &valErr), "cause must stay reachable")
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 8, 1)
	assert.Equal(t, "searchcv: Predict: dimension mismatch on axis 1 (features). Expected 10, got 8", err.Error())

	var dimErr *DimensionError
	assert.True(t, As(err, &dimErr))
}

func TestNotFittedError(t *testing.T) {
	err := NewNotFittedError("Evaluator", "Predict")
	var nf *NotFittedError
	require.True(t, As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger.Error().Object("err", &EstimatorError{Estimator: "Ridge", Reason: "no Fit"}).Msg("rejected")
	out := buf.String()
	assert.Contains(t, out, `"estimator":"Ridge"`)
	assert.Contains(t, out, `"type":"EstimatorError"`)
}

func TestWarn(t *testing.T) {
	var got []error
	prev := SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(prev)

	Warn(NewDefaultScoringWarning("neg_mean_squared_error"))
	Warn(NewConvergenceWarning("LogisticRegression", 100, ""))

	require.Len(t, got, 2)
	assert.Contains(t, got[0].Error(), "neg_mean_squared_error")
	assert.Contains(t, got[1].Error(), "failed to converge after 100 iterations")
}
