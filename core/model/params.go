package model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Hyperparameter values reach SetParams from grids written in Go, decoded
// from YAML or restored from gob, so numeric kinds vary. The helpers below
// accept any reasonable representation and reject the rest with an
// InvalidConfigurationError naming the owner and key.

// FloatParam converts v to float64.
func FloatParam(owner, key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, errors.NewInvalidConfigurationError(owner+".SetParams", key, "expected a number", v)
}

// IntParam converts v to int. Floats must be integral.
func IntParam(owner, key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float32:
		if float32(math.Trunc(float64(x))) == x {
			return int(x), nil
		}
	case float64:
		if math.Trunc(x) == x {
			return int(x), nil
		}
	}
	return 0, errors.NewInvalidConfigurationError(owner+".SetParams", key, "expected an integer", v)
}

// BoolParam converts v to bool.
func BoolParam(owner, key string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewInvalidConfigurationError(owner+".SetParams", key, "expected a boolean", v)
}

// StringParam converts v to string, restricted to allowed when non-empty.
func StringParam(owner, key string, v interface{}, allowed ...string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewInvalidConfigurationError(owner+".SetParams", key, "expected a string", v)
	}
	if len(allowed) == 0 {
		return s, nil
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", errors.NewInvalidConfigurationError(owner+".SetParams", key, fmt.Sprintf("must be one of %v", allowed), v)
}

// UnknownParam is the error SetParams returns for a key it does not own.
func UnknownParam(owner, key string) error {
	return errors.NewInvalidConfigurationError(owner+".SetParams", key, "unknown parameter", nil)
}
