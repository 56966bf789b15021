// Package model defines the capability interfaces every estimator in
// searchcv is probed against, plus shared state and persistence helpers.
//
// Estimators are duck-typed: the search layer only requires Fitter and
// Predictor, and discovers everything else (parameters, cloning, feature
// importances, binary state) through the optional interfaces below.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Model is the minimal contract of a trainable predictor.
type Model interface {
	Fitter
	Predictor
}

// ParameterGetter is implemented by models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is implemented by models that accept hyperparameters.
// Unknown keys must be rejected with an error.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Cloner is implemented by models that can produce an unfitted copy with the
// same hyperparameters. Cloneable models can be evaluated concurrently.
type Cloner interface {
	Clone() Model
}

// FeatureImporter is implemented by models with per-feature importances.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// ProbabilisticClassifier is implemented by classifiers with class
// probability estimates.
type ProbabilisticClassifier interface {
	Model
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
