// Package metrics implements point metrics over gonum vectors. Search
// scorers build on these; they are plain functions with no sign convention.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// ColumnVector converts an n×1 matrix to a vector. Predictions and targets
// flow through the search layer as column matrices.
func ColumnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// pair validates two vectors of equal, non-zero length and returns their
// raw data.
func pair(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != yTrue.Len() {
		return nil, nil, errors.NewDimensionError(op, yTrue.Len(), yPred.Len(), 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	d := make([]float64, len(t))
	floats.SubTo(d, t, p)
	return floats.Dot(d, d) / float64(len(d)), nil
}

// MSEMatrix computes MSE over n×1 matrices.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := ColumnVector("MSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := ColumnVector("MSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(t, p, 1) / float64(len(t)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	mean := stat.Mean(t, nil)
	var tss, rss float64
	for i := range t {
		tss += (t[i] - mean) * (t[i] - mean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MAPE computes the mean absolute percentage error in percent, skipping
// rows whose true value is zero.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	valid := 0
	for i := range t {
		if t[i] == 0 {
			continue
		}
		sum += math.Abs(t[i]-p[i]) / math.Abs(t[i])
		valid++
	}
	if valid == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	resid := make([]float64, len(t))
	floats.SubTo(resid, t, p)

	_, varTrue := stat.PopMeanVariance(t, nil)
	if varTrue == 0 {
		return 0, errors.NewValueError("ExplainedVarianceScore", "no variance in yTrue")
	}
	_, varResid := stat.PopMeanVariance(resid, nil)
	return 1 - varResid/varTrue, nil
}
