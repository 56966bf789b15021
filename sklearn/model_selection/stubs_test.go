package model_selection

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func init() {
	// stubB is left unregistered on purpose: loading it yields a nil
	// BestEstimator.
	model.Register("stubA", func() model.Model { return &stubA{} })
}

// constModel predicts its "x" parameter for every row and records the row
// count of every Fit call.
type constModel struct {
	mu      sync.Mutex
	value   float64
	fitRows []int
}

func (m *constModel) Fit(X, _ mat.Matrix) error {
	r, _ := X.Dims()
	m.mu.Lock()
	m.fitRows = append(m.fitRows, r)
	m.mu.Unlock()
	return nil
}

func (m *constModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.value)
	}
	return out, nil
}

func (m *constModel) GetParams() map[string]interface{} {
	return map[string]interface{}{"x": m.value}
}

func (m *constModel) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "x" {
			return model.UnknownParam("constModel", k)
		}
		f, err := model.FloatParam("constModel", k, v)
		if err != nil {
			return err
		}
		m.value = f
	}
	return nil
}

func (m *constModel) lastFitRows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.fitRows) == 0 {
		return 0
	}
	return m.fitRows[len(m.fitRows)-1]
}

func (m *constModel) fitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fitRows)
}

type stubA struct{ constModel }

type stubB struct{ constModel }

func newStubA() model.Model { return &stubA{} }

func newStubB() model.Model { return &stubB{} }

// looseModel is a constModel that ignores every parameter except "x".
type looseModel struct{ constModel }

func newLooseModel() model.Model { return &looseModel{} }

func (m *looseModel) SetParams(params map[string]interface{}) error {
	if v, ok := params["x"]; ok {
		return m.constModel.SetParams(map[string]interface{}{"x": v})
	}
	return nil
}

// predictOnly has no Fit method.
type predictOnly struct{}

func (predictOnly) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	return mat.NewDense(r, 1, nil), nil
}

// brokenModel fails every Fit.
type brokenModel struct{}

func (brokenModel) Fit(_, _ mat.Matrix) error { return errors.New("broken fit") }

func (brokenModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	return mat.NewDense(r, 1, nil), nil
}

// onesData returns n rows of X = i and a constant label 1.
func onesData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, 1)
	}
	return X, y
}

// lineData returns y = 2x + 1 for x = 1..n.
func lineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i + 1)
		X.Set(i, 0, x)
		y.Set(i, 0, 2*x+1)
	}
	return X, y
}

// collectWarnings returns a handler that records warnings and the slice it
// appends to.
func collectWarnings() (func(error), *[]error) {
	var mu sync.Mutex
	var got []error
	return func(w error) {
		mu.Lock()
		got = append(got, w)
		mu.Unlock()
	}, &got
}
