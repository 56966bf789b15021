// Package preprocessing provides feature transformers that can run as the
// optional pipeline step in front of an evaluated estimator.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/core/parallel"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// Transform splits rows across CPUs above this size.
const parallelRowThreshold = 1000

// New returns a transformer by name: "standard" or "minmax".
func New(name string) (model.Transformer, error) {
	switch name {
	case "standard", "StandardScaler":
		return NewStandardScalerDefault(), nil
	case "minmax", "MinMaxScaler":
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValueError("preprocessing.New", fmt.Sprintf("unknown transformer %q", name))
	}
}

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler creates a StandardScaler.
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-column mean and population standard deviation.
// Near-constant columns get scale 1.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "StandardScaler.Fit")
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && math.Abs(std) >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetFitted(c, r)
	return nil
}

// Transform standardizes X with the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.Transform", c); err != nil {
		return nil, err
	}

	result := mat.DenseCopyOf(X)
	parallel.ParallelizeWithThreshold(r, parallelRowThreshold, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, result)
			floats.Sub(row, s.Mean)
			floats.Div(row, s.Scale)
			result.SetRow(i, row)
		}
	})
	return result, nil
}

// FitTransform fits on X and returns X standardized.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized data back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.DenseCopyOf(X)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, result)
		floats.Mul(row, s.Scale)
		floats.Add(row, s.Mean)
		result.SetRow(i, row)
	}
	return result, nil
}

// GetParams returns the scaler options.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

// MinMaxScaler rescales each column into FeatureRange.
type MinMaxScaler struct {
	state *model.StateManager

	FeatureRange [2]float64
	DataMin      []float64
	DataMax      []float64
}

// NewMinMaxScaler creates a MinMaxScaler for the given output range.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{state: model.NewStateManager(), FeatureRange: featureRange}
}

// NewMinMaxScalerDefault scales into [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit records per-column minima and maxima.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MinMaxScaler.Fit")
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValueError("MinMaxScaler.Fit", "feature_range min must be below max")
	}
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m.DataMin[j] = floats.Min(col)
		m.DataMax[j] = floats.Max(col)
	}
	m.state.SetFitted(c, r)
	return nil
}

// Transform rescales X. Constant columns map to the lower bound.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler.Transform", c); err != nil {
		return nil, err
	}
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	result := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		span := m.DataMax[j] - m.DataMin[j]
		for i := 0; i < r; i++ {
			if span == 0 {
				result.Set(i, j, lo)
				continue
			}
			result.Set(i, j, lo+(X.At(i, j)-m.DataMin[j])/span*(hi-lo))
		}
	}
	return result, nil
}

// FitTransform fits on X and returns X rescaled.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// GetParams returns the scaler options.
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": []interface{}{m.FeatureRange[0], m.FeatureRange[1]},
	}
}
