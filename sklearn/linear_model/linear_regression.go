package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

const weightsVersion = "1.0.0"

func init() {
	model.Register("LinearRegression", func() model.Model { return NewLinearRegression() })
	model.Register("Ridge", func() model.Model { return NewRidge() })
}

// linearState is the learned part shared by the least-squares models.
type linearState struct {
	state *model.StateManager

	coef_      []float64
	intercept_ float64
}

func (ls *linearState) predict(name string, X mat.Matrix) (mat.Matrix, error) {
	if err := ls.state.RequireFitted(name, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := ls.state.RequireFeatures(name+".Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	coef := mat.NewVecDense(cols, ls.coef_)
	var out mat.VecDense
	out.MulVec(X, coef)
	for i := 0; i < rows; i++ {
		predictions.Set(i, 0, out.AtVec(i)+ls.intercept_)
	}
	return predictions, nil
}

// Coef は学習された重み係数を返す
func (ls *linearState) Coef() []float64 {
	if ls.coef_ == nil {
		return nil
	}
	coef := make([]float64, len(ls.coef_))
	copy(coef, ls.coef_)
	return coef
}

// Intercept は学習された切片を返す
func (ls *linearState) Intercept() float64 {
	return ls.intercept_
}

// IsFitted returns whether the model has been fitted
func (ls *linearState) IsFitted() bool {
	return ls.state.IsFitted()
}

func (ls *linearState) marshal(modelType string) ([]byte, error) {
	nFeatures, nSamples := ls.state.GetDimensions()
	w := &model.ModelWeights{
		ModelType: modelType,
		Version:   weightsVersion,
		NFeatures: nFeatures,
		NSamples:  nSamples,
		IsFitted:  ls.state.IsFitted(),
	}
	if w.IsFitted {
		w.Coefficients = [][]float64{ls.Coef()}
		w.Intercepts = []float64{ls.intercept_}
	}
	return w.ToJSON()
}

func (ls *linearState) unmarshal(modelType string, data []byte) error {
	var w model.ModelWeights
	if err := w.FromJSON(data); err != nil {
		return err
	}
	if err := w.CheckType(modelType, weightsVersion); err != nil {
		return err
	}
	if !w.IsFitted {
		ls.state.Reset()
		ls.coef_, ls.intercept_ = nil, 0
		return nil
	}
	if len(w.Coefficients) != 1 {
		return errors.NewDimensionError(modelType+".UnmarshalBinary", 1, len(w.Coefficients), 0)
	}
	ls.coef_ = append([]float64(nil), w.Coefficients[0]...)
	ls.intercept_ = w.Intercepts[0]
	ls.state.SetFitted(w.NFeatures, w.NSamples)
	return nil
}

func checkXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return rows, cols, nil
}

// LinearRegression is a linear regression model using ordinary least squares
// Fully compatible with scikit-learn's LinearRegression
type LinearRegression struct {
	linearState

	// Hyperparameters
	fitIntercept bool // Whether to learn the intercept
	positive     bool // Whether to clip coefficients at zero
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithPositive は係数の正制約を設定
func WithPositive(positive bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.positive = positive
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		linearState:  linearState{state: model.NewStateManager()},
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit solves the least-squares problem with a QR factorization.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	XFit := design(X, lr.fitIntercept)
	_, qrCols := XFit.Dims()
	if rows < qrCols {
		return errors.NewValueError("LinearRegression.Fit",
			fmt.Sprintf("need at least %d samples for %d coefficients, got %d", qrCols, qrCols, rows))
	}

	// 正規方程式より数値的に安定なQR分解を使用
	var qr mat.QR
	qr.Factorize(XFit)
	coefficients := mat.NewDense(qrCols, 1, nil)
	if err := qr.SolveTo(coefficients, false, y); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}

	offset := 0
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = coefficients.At(0, 0)
		offset = 1
	}
	lr.coef_ = make([]float64, cols)
	for i := 0; i < cols; i++ {
		lr.coef_[i] = coefficients.At(i+offset, 0)
		if lr.positive && lr.coef_[i] < 0 {
			lr.coef_[i] = 0
		}
	}

	lr.state.SetFitted(cols, rows)
	return nil
}

// design returns X with a leading column of ones when intercept is set.
func design(X mat.Matrix, intercept bool) *mat.Dense {
	rows, cols := X.Dims()
	if !intercept {
		return mat.DenseCopyOf(X)
	}
	out := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, 1.0)
		for j := 0; j < cols; j++ {
			out.Set(i, j+1, X.At(i, j))
		}
	}
	return out
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	return lr.predict("LinearRegression", X)
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"positive":      lr.positive,
	}
}

// SetParams sets hyperparameters; unknown keys are rejected.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "fit_intercept":
			lr.fitIntercept, err = model.BoolParam("LinearRegression", key, value)
		case "positive":
			lr.positive, err = model.BoolParam("LinearRegression", key, value)
		default:
			err = model.UnknownParam("LinearRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LinearRegression) Clone() model.Model {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept), WithPositive(lr.positive))
}

// MarshalBinary encodes the learned weights.
func (lr *LinearRegression) MarshalBinary() ([]byte, error) {
	return lr.marshal("LinearRegression")
}

// UnmarshalBinary restores weights produced by MarshalBinary.
func (lr *LinearRegression) UnmarshalBinary(data []byte) error {
	return lr.unmarshal("LinearRegression", data)
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, positive=%t)", lr.fitIntercept, lr.positive)
}

// Ridge is least squares with an L2 penalty alpha*||w||². The intercept is
// not penalized.
type Ridge struct {
	linearState

	alpha        float64
	fitIntercept bool
}

// RidgeOption configures a Ridge model.
type RidgeOption func(*Ridge)

// WithAlpha sets the regularization strength.
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) {
		r.alpha = alpha
	}
}

// WithRidgeFitIntercept sets whether to learn the intercept.
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) {
		r.fitIntercept = fit
	}
}

// NewRidge creates a Ridge model with alpha=1.
func NewRidge(options ...RidgeOption) *Ridge {
	r := &Ridge{
		linearState:  linearState{state: model.NewStateManager()},
		alpha:        1.0,
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Fit solves (XᵀX + αI)w = Xᵀy on centered data.
func (r *Ridge) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkXY("Ridge.Fit", X, y)
	if err != nil {
		return err
	}
	if r.alpha < 0 {
		return errors.NewValueError("Ridge.Fit", fmt.Sprintf("alpha must be non-negative, got %v", r.alpha))
	}

	Xc := mat.DenseCopyOf(X)
	yc := make([]float64, rows)
	for i := range yc {
		yc[i] = y.At(i, 0)
	}
	xMean := make([]float64, cols)
	var yMean float64
	if r.fitIntercept {
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				xMean[j] += Xc.At(i, j)
			}
			xMean[j] /= float64(rows)
			for i := 0; i < rows; i++ {
				Xc.Set(i, j, Xc.At(i, j)-xMean[j])
			}
		}
		for _, v := range yc {
			yMean += v
		}
		yMean /= float64(rows)
		for i := range yc {
			yc[i] -= yMean
		}
	}

	var gram mat.SymDense
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(Xc.T(), mat.NewVecDense(rows, yc))

	var w mat.VecDense
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); ok {
		if err := chol.SolveVecTo(&w, &rhs); err != nil {
			return errors.Wrap(errors.ErrSingularMatrix, err.Error())
		}
	} else if err := w.SolveVec(&gram, &rhs); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}

	r.coef_ = make([]float64, cols)
	r.intercept_ = yMean
	for j := 0; j < cols; j++ {
		r.coef_[j] = w.AtVec(j)
		r.intercept_ -= xMean[j] * r.coef_[j]
	}
	r.state.SetFitted(cols, rows)
	return nil
}

// Predict returns Xw + b.
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	return r.predict("Ridge", X)
}

// GetParams returns the model's hyperparameters.
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.alpha,
		"fit_intercept": r.fitIntercept,
	}
}

// SetParams sets hyperparameters; unknown keys are rejected.
func (r *Ridge) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "alpha":
			r.alpha, err = model.FloatParam("Ridge", key, value)
		case "fit_intercept":
			r.fitIntercept, err = model.BoolParam("Ridge", key, value)
		default:
			err = model.UnknownParam("Ridge", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (r *Ridge) Clone() model.Model {
	return NewRidge(WithAlpha(r.alpha), WithRidgeFitIntercept(r.fitIntercept))
}

// MarshalBinary encodes the learned weights.
func (r *Ridge) MarshalBinary() ([]byte, error) {
	return r.marshal("Ridge")
}

// UnmarshalBinary restores weights produced by MarshalBinary.
func (r *Ridge) UnmarshalBinary(data []byte) error {
	return r.unmarshal("Ridge", data)
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.alpha, r.fitIntercept)
}
