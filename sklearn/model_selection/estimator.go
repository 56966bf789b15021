package model_selection

import (
	"reflect"
	"sync"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Estimator is a materialized search candidate. It knows how to produce a
// fresh model configured with a parameter combination, either from a
// factory, by cloning, or by resetting a single shared instance.
type Estimator struct {
	name     string
	instance model.Model
	factory  func() (model.Model, error)

	// base holds the instance's parameters at materialization time so a
	// shared instance can be reset between candidates.
	base map[string]interface{}

	mu sync.Mutex
}

// Materialize turns a search candidate into an Estimator. Accepted forms:
//
//   - a model.Model value, used as a template (cloned when it implements
//     model.Cloner, otherwise reused in place)
//   - a model.Factory or func() model.Model, called with no arguments
//   - a func() (model.Model, error)
//   - any other func with no required arguments whose first result
//     implements model.Model, optionally followed by an error, such as
//     linear_model.NewRidge
//
// Anything else, including values lacking Fit or Predict, fails with an
// EstimatorError naming the candidate's type.
func Materialize(candidate interface{}) (*Estimator, error) {
	if candidate == nil {
		return nil, errors.NewEstimatorError("<nil>", "estimator is nil", nil)
	}

	var factory func() (model.Model, error)
	switch c := candidate.(type) {
	case model.Factory:
		factory = func() (model.Model, error) { return c(), nil }
	case func() model.Model:
		factory = func() (model.Model, error) { return c(), nil }
	case func() (model.Model, error):
		factory = c
	case model.Model:
		return newEstimator(c, nil), nil
	default:
		f, err := reflectFactory(candidate)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, capabilityError(candidate)
		}
		factory = f
	}

	m, err := build(factory)
	if err != nil {
		return nil, errors.NewEstimatorError(model.TypeName(candidate), "factory failed", err)
	}
	if m == nil {
		return nil, errors.NewEstimatorError(model.TypeName(candidate), "factory returned nil", nil)
	}
	return newEstimator(m, factory), nil
}

var (
	modelType = reflect.TypeOf((*model.Model)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// reflectFactory wraps constructor funcs such as func(...Option) *Ridge.
// It returns nil, nil when candidate is not a func.
func reflectFactory(candidate interface{}) (func() (model.Model, error), error) {
	fn := reflect.ValueOf(candidate)
	t := fn.Type()
	if t.Kind() != reflect.Func {
		return nil, nil
	}
	name := model.TypeName(candidate)
	required := t.NumIn()
	if t.IsVariadic() {
		required--
	}
	if required > 0 {
		return nil, errors.NewEstimatorError(name, "factory must take no required arguments", nil)
	}
	withErr := t.NumOut() == 2 && t.Out(1) == errorType
	if t.NumOut() == 0 || (t.NumOut() > 1 && !withErr) || !t.Out(0).Implements(modelType) {
		return nil, errors.NewEstimatorError(name, "factory must return a model.Model", nil)
	}

	return func() (model.Model, error) {
		var out []reflect.Value
		if t.IsVariadic() {
			out = fn.CallSlice([]reflect.Value{reflect.MakeSlice(t.In(0), 0, 0)})
		} else {
			out = fn.Call(nil)
		}
		if withErr && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		if isNilValue(out[0]) {
			return nil, nil
		}
		return out[0].Interface().(model.Model), nil
	}, nil
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// build calls factory, turning a panic into an error.
func build(factory func() (model.Model, error)) (m model.Model, err error) {
	err = errors.SafeExecute("Materialize", func() error {
		var ferr error
		m, ferr = factory()
		return ferr
	})
	return m, err
}

func newEstimator(m model.Model, factory func() (model.Model, error)) *Estimator {
	e := &Estimator{name: model.TypeName(m), instance: m, factory: factory}
	if pg, ok := m.(model.ParameterGetter); ok {
		e.base = pg.GetParams()
	}
	return e
}

func capabilityError(candidate interface{}) error {
	name := model.TypeName(candidate)
	_, canFit := candidate.(model.Fitter)
	_, canPredict := candidate.(model.Predictor)
	switch {
	case !canFit && !canPredict:
		return errors.NewEstimatorError(name, "does not implement Fit or Predict", nil)
	case !canFit:
		return errors.NewEstimatorError(name, "does not implement Fit(X, y mat.Matrix) error", nil)
	default:
		return errors.NewEstimatorError(name, "does not implement Predict(X mat.Matrix) (mat.Matrix, error)", nil)
	}
}

// Name returns the estimator's type name, e.g. "Ridge".
func (e *Estimator) Name() string {
	return e.name
}

// Instance returns the materialized model.
func (e *Estimator) Instance() model.Model {
	return e.instance
}

// Shared reports whether every Spawn returns the same instance, which
// forces sequential evaluation.
func (e *Estimator) Shared() bool {
	if e.factory != nil {
		return false
	}
	_, ok := e.instance.(model.Cloner)
	return !ok
}

// AcceptsParams reports whether the model implements SetParams.
func (e *Estimator) AcceptsParams() bool {
	_, ok := e.instance.(model.ParameterSetter)
	return ok
}

// Spawn returns a model configured with params. Fresh models come from the
// factory or Clone; shared instances are reset to their original
// parameters first. Callers must not Spawn a shared estimator concurrently.
func (e *Estimator) Spawn(params Params) (model.Model, error) {
	var m model.Model
	switch {
	case e.factory != nil:
		var err error
		if m, err = build(e.factory); err != nil {
			return nil, errors.NewEstimatorError(e.name, "factory failed", err)
		}
	case !e.Shared():
		m = e.instance.(model.Cloner).Clone()
	default:
		e.mu.Lock()
		defer e.mu.Unlock()
		m = e.instance
		if ps, ok := m.(model.ParameterSetter); ok && len(e.base) > 0 {
			if err := ps.SetParams(e.base); err != nil {
				return nil, errors.NewEstimatorError(e.name, "cannot restore parameters", err)
			}
		}
	}
	if m == nil {
		return nil, errors.NewEstimatorError(e.name, "produced a nil model", nil)
	}
	if err := applyParams(e.name, m, params); err != nil {
		return nil, err
	}
	return m, nil
}

func applyParams(name string, m model.Model, params Params) error {
	if len(params) == 0 {
		return nil
	}
	ps, ok := m.(model.ParameterSetter)
	if !ok {
		return errors.NewEstimatorError(name, "does not accept hyperparameters (no SetParams)", nil)
	}
	if err := ps.SetParams(params.Clone()); err != nil {
		return errors.NewEstimatorError(name, "rejected parameters "+params.String(), err)
	}
	return nil
}
