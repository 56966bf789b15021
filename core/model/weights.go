package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// ModelWeights is the learned state of a linear model. Hyperparameters are
// not part of it; they travel separately with the snapshot.
type ModelWeights struct {
	// ModelType is the registry name, e.g. "Ridge".
	ModelType string `json:"model_type"`

	// Version guards against decoding state from an incompatible layout.
	Version string `json:"version"`

	// Coefficients has one row per output (one for regression and binary
	// classification, one per class for one-vs-rest).
	Coefficients [][]float64 `json:"coefficients"`

	// Intercepts has one entry per coefficient row.
	Intercepts []float64 `json:"intercepts"`

	// Classes holds class labels for classifiers.
	Classes []int `json:"classes,omitempty"`

	NFeatures int  `json:"n_features"`
	NSamples  int  `json:"n_samples"`
	IsFitted  bool `json:"is_fitted"`
}

// ToJSON serializes the weights.
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.Marshal(mw)
}

// FromJSON deserializes weights and validates them.
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return mw.Validate()
}

// Validate checks the structural consistency of the weights.
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValueError("ModelWeights.Validate", "model_type is required")
	}
	if mw.Version == "" {
		return errors.NewValueError("ModelWeights.Validate", "version is required")
	}
	if !mw.IsFitted {
		if len(mw.Coefficients) > 0 {
			return errors.NewValueError("ModelWeights.Validate", "unfitted model should not have coefficients")
		}
		return nil
	}
	if len(mw.Coefficients) == 0 {
		return errors.NewValueError("ModelWeights.Validate", "fitted model must have coefficients")
	}
	if len(mw.Intercepts) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Coefficients), len(mw.Intercepts), 0)
	}
	for _, row := range mw.Coefficients {
		if len(row) != mw.NFeatures {
			return errors.NewDimensionError("ModelWeights.Validate", mw.NFeatures, len(row), 1)
		}
	}
	return nil
}

// CheckType fails when the weights belong to another model type or version.
func (mw *ModelWeights) CheckType(modelType, version string) error {
	if mw.ModelType != modelType {
		return errors.Newf("model type mismatch: expected %s, got %s", modelType, mw.ModelType)
	}
	if mw.Version != version {
		return errors.Newf("%s: unsupported weights version %s (want %s)", modelType, mw.Version, version)
	}
	return nil
}
