package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func init() {
	model.Register("LogisticRegression", func() model.Model { return NewLogisticRegression() })
}

// LogisticRegression implements logistic regression for classification.
// Binary problems fit a single weight vector; multiclass problems are
// fitted one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Seed for the weight initialization
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nIter_     []int       // Actual iterations per class
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  0,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := checkXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if lr.penalty == "l2" && lr.C <= 0 {
		return errors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("C must be positive, got %v", lr.C))
	}

	lr.extractClasses(y)
	if len(lr.classes_) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(lr.classes_)))
	}
	lr.initializeWeights(nFeatures)

	// Binary problems learn the positive class only.
	targets := lr.classes_
	if len(lr.classes_) == 2 {
		targets = lr.classes_[1:]
	}
	for classIdx, class := range targets {
		yBinary := make([]float64, nSamples)
		for i := range yBinary {
			if int(y.At(i, 0)) == class {
				yBinary[i] = 1
			}
		}
		lr.fitBinaryForClass(X, yBinary, classIdx)
	}

	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	lr.classes_ = lr.classes_[:0]
	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		if !seen[label] {
			seen[label] = true
			lr.classes_ = append(lr.classes_, label)
		}
	}
	sort.Ints(lr.classes_)
}

// initializeWeights initializes model weights with small seeded noise
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	rows := len(lr.classes_)
	if rows == 2 {
		rows = 1
	}
	seed := uint64(lr.randomState)
	rng := rand.New(rand.NewPCG(seed, seed))

	lr.coef_ = make([][]float64, rows)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = rng.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, rows)
	lr.nIter_ = make([]int, rows)
}

// fitBinaryForClass runs gradient descent with a decaying learning rate
// for coefficient row classIdx against 0/1 targets.
func (lr *LogisticRegression) fitBinaryForClass(X mat.Matrix, yBinary []float64, classIdx int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[classIdx]
	intercept := &lr.intercept_[classIdx]

	const baseLearningRate = 1.0
	gradWeights := make([]float64, nFeatures)
	converged := false

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - yBinary[i]
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / (lr.C * float64(nSamples))
			for j := range weights {
				gradWeights[j] += lambda * weights[j]
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}
		lr.nIter_[classIdx] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
			"gradient descent did not reach tol; increase max_iter"))
	}
}

// decision returns the linear scores of row i, one per coefficient row.
func (lr *LogisticRegression) decision(X mat.Matrix, i int) []float64 {
	scores := make([]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		s := lr.intercept_[k]
		for j, wj := range w {
			s += X.At(i, j) * wj
		}
		scores[k] = s
	}
	return scores
}

func (lr *LogisticRegression) checkPredict(method string, X mat.Matrix) error {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return lr.state.RequireFeatures("LogisticRegression."+method, cols)
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict("Predict", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		scores := lr.decision(X, i)
		if len(scores) == 1 {
			label := lr.classes_[0]
			if sigmoid(scores[0]) >= 0.5 {
				label = lr.classes_[1]
			}
			predictions.Set(i, 0, float64(label))
			continue
		}
		best := 0
		for k := range scores {
			if scores[k] > scores[best] {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(lr.classes_), nil)
	for i := 0; i < nSamples; i++ {
		scores := lr.decision(X, i)
		if len(scores) == 1 {
			p := sigmoid(scores[0])
			probas.Set(i, 0, 1.0-p)
			probas.Set(i, 1, p)
			continue
		}

		// Multiclass using softmax
		maxScore := scores[0]
		for _, s := range scores {
			maxScore = math.Max(maxScore, s)
		}
		sum := 0.0
		for k := range scores {
			scores[k] = math.Exp(scores[k] - maxScore)
			sum += scores[k]
		}
		for k := range scores {
			probas.Set(i, k, scores[k]/sum)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the iterations run per coefficient row.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	const owner = "LogisticRegression"
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.StringParam(owner, key, value, "l2", "none")
		case "C":
			lr.C, err = model.FloatParam(owner, key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.BoolParam(owner, key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(owner, key, value)
			lr.randomState = int64(seed)
		case "max_iter":
			lr.maxIter, err = model.IntParam(owner, key, value)
		case "tol":
			lr.tol, err = model.FloatParam(owner, key, value)
		default:
			err = model.UnknownParam(owner, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Model {
	return NewLogisticRegression(
		WithLRPenalty(lr.penalty),
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.fitIntercept),
		WithLRRandomState(lr.randomState),
		WithLRMaxIter(lr.maxIter),
		WithLRTol(lr.tol),
	)
}

// MarshalBinary encodes coefficients, intercepts and classes.
func (lr *LogisticRegression) MarshalBinary() ([]byte, error) {
	nFeatures, nSamples := lr.state.GetDimensions()
	w := &model.ModelWeights{
		ModelType: "LogisticRegression",
		Version:   weightsVersion,
		NFeatures: nFeatures,
		NSamples:  nSamples,
		IsFitted:  lr.state.IsFitted(),
	}
	if w.IsFitted {
		w.Coefficients = lr.coef_
		w.Intercepts = lr.intercept_
		w.Classes = lr.classes_
	}
	return w.ToJSON()
}

// UnmarshalBinary restores state produced by MarshalBinary.
func (lr *LogisticRegression) UnmarshalBinary(data []byte) error {
	var w model.ModelWeights
	if err := w.FromJSON(data); err != nil {
		return err
	}
	if err := w.CheckType("LogisticRegression", weightsVersion); err != nil {
		return err
	}
	if !w.IsFitted {
		lr.state.Reset()
		lr.coef_, lr.intercept_, lr.classes_ = nil, nil, nil
		return nil
	}
	want := len(w.Classes)
	if want == 2 {
		want = 1
	}
	if len(w.Classes) < 2 || len(w.Coefficients) != want {
		return errors.NewValueError("LogisticRegression.UnmarshalBinary", "coefficients do not match classes")
	}
	lr.coef_ = w.Coefficients
	lr.intercept_ = w.Intercepts
	lr.classes_ = w.Classes
	lr.nIter_ = make([]int, len(w.Coefficients))
	lr.state.SetFitted(w.NFeatures, w.NSamples)
	return nil
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, max_iter=%d)", lr.penalty, lr.C, lr.maxIter)
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
