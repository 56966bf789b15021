package model

import (
	"reflect"
	"sort"
	"sync"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Factory builds a model with default hyperparameters.
type Factory func() Model

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a model constructor available by name. Estimator packages
// call it from init with their type name so persisted results can be
// rehydrated and the CLI can build estimators from configuration.
// Registering the same name twice panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("model: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("model: Register called twice for " + name)
	}
	registry[name] = factory
}

// New builds a registered model.
func New(name string) (Model, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewEstimatorError(name, "not registered", nil)
	}
	return factory(), nil
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Registered lists registered model names in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeName returns the short type name of v with pointers dereferenced,
// e.g. "Ridge" for *linear_model.Ridge. Unnamed types fall back to their
// full type string.
func TypeName(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
