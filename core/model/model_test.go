package model

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

type constModel struct {
	value float64
	bias  float64
}

func (c *constModel) Fit(_, y mat.Matrix) error {
	r, _ := y.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	c.bias = sum / float64(r)
	return nil
}

func (c *constModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, c.value+c.bias)
	}
	return out, nil
}

func (c *constModel) GetParams() map[string]interface{} {
	return map[string]interface{}{"value": c.value}
}

func (c *constModel) SetParams(p map[string]interface{}) error {
	if v, ok := p["value"].(float64); ok {
		c.value = v
	}
	return nil
}

func (c *constModel) MarshalBinary() ([]byte, error) { return json.Marshal(c.bias) }

func (c *constModel) UnmarshalBinary(b []byte) error { return json.Unmarshal(b, &c.bias) }

func init() {
	Register("constModel", func() Model { return &constModel{} })
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Registered(), "constModel")

	m, err := New("constModel")
	require.NoError(t, err)
	assert.IsType(t, &constModel{}, m)

	_, err = New("missing")
	var estErr *errors.EstimatorError
	assert.True(t, errors.As(err, &estErr))

	assert.Panics(t, func() { Register("constModel", func() Model { return &constModel{} }) })
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "constModel", TypeName(&constModel{}))
	assert.Equal(t, "constModel", TypeName(constModel{}))
	assert.Equal(t, "<nil>", TypeName(nil))
	assert.Equal(t, "func() int", TypeName(func() int { return 0 }))
}

func TestSnapshotRoundTrip(t *testing.T) {
	orig := &constModel{value: 2.5}
	require.NoError(t, orig.Fit(nil, mat.NewDense(2, 1, []float64{1, 3})))

	snap, err := TakeSnapshot(orig)
	require.NoError(t, err)
	assert.Equal(t, "constModel", snap.Type)

	var buf bytes.Buffer
	require.NoError(t, SaveToWriter(snap, &buf))

	var decoded Snapshot
	require.NoError(t, LoadFromReader(&decoded, &buf))

	restored, err := decoded.Restore()
	require.NoError(t, err)

	pred, err := restored.Predict(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 4.5, pred.At(0, 0), 1e-12)
}

func TestSnapshotUnknownType(t *testing.T) {
	snap := &Snapshot{Type: "NotRegistered"}
	_, err := snap.Restore()
	assert.Error(t, err)
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Ridge", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	s.SetFitted(3, 10)
	assert.NoError(t, s.RequireFitted("Ridge", "Predict"))
	assert.NoError(t, s.RequireFeatures("Ridge.Predict", 3))
	assert.Error(t, s.RequireFeatures("Ridge.Predict", 2))

	s.Reset()
	f, n := s.GetDimensions()
	assert.Zero(t, f)
	assert.Zero(t, n)
}

func TestModelWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       ModelWeights
		wantErr bool
	}{
		{"unfitted empty", ModelWeights{ModelType: "Ridge", Version: "1"}, false},
		{"missing type", ModelWeights{Version: "1"}, true},
		{"fitted without coef", ModelWeights{ModelType: "Ridge", Version: "1", IsFitted: true}, true},
		{
			name: "fitted ok",
			w: ModelWeights{ModelType: "Ridge", Version: "1", IsFitted: true, NFeatures: 2,
				Coefficients: [][]float64{{1, 2}}, Intercepts: []float64{0.5}},
		},
		{
			name: "row width mismatch",
			w: ModelWeights{ModelType: "Ridge", Version: "1", IsFitted: true, NFeatures: 3,
				Coefficients: [][]float64{{1, 2}}, Intercepts: []float64{0.5}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
