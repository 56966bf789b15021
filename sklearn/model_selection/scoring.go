package model_selection

import (
	"math"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/metrics"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// DefaultScoring is used when no scoring identifier is given.
const DefaultScoring = "neg_mean_squared_error"

// Task tells the splitter how to partition folds for a scorer.
type Task int

const (
	// Regression scorers use plain KFold.
	Regression Task = iota
	// Classification scorers use StratifiedKFold.
	Classification
)

func (t Task) String() string {
	if t == Classification {
		return "classification"
	}
	return "regression"
}

// ScoreFunc evaluates a fitted estimator on X and y. Higher is better.
type ScoreFunc func(est model.Predictor, X, y mat.Matrix) (float64, error)

// Scorer is a named score function.
type Scorer struct {
	Name  string
	Task  Task
	Score ScoreFunc
}

// ScoringResolver maps user supplied scoring identifiers to scorers.
// Identifiers are matched case-insensitively after alias expansion.
type ScoringResolver struct {
	mu      sync.RWMutex
	scorers map[string]Scorer
	aliases map[string]string

	warnOnce sync.Once
	notify   func(error)
}

// ResolverOption configures a ScoringResolver.
type ResolverOption func(*ScoringResolver)

// WithNotice routes the one-time default scoring warning to fn instead of
// errors.Warn.
func WithNotice(fn func(error)) ResolverOption {
	return func(r *ScoringResolver) {
		r.notify = fn
	}
}

// NewScoringResolver returns a resolver preloaded with the built-in scorers.
func NewScoringResolver(opts ...ResolverOption) *ScoringResolver {
	r := &ScoringResolver{
		scorers: make(map[string]Scorer),
		aliases: map[string]string{
			"mse":     "neg_mean_squared_error",
			"nmse":    "neg_mean_squared_error",
			"neg_mse": "neg_mean_squared_error",
			"nrmse":   "neg_root_mean_squared_error",
			"rmse":    "neg_root_mean_squared_error",
			"nmae":    "neg_mean_absolute_error",
			"mae":     "neg_mean_absolute_error",
			"nmape":   "neg_mean_absolute_percentage_error",
			"acc":     "accuracy",
		},
		notify: errors.Warn,
	}
	for _, s := range builtinScorers() {
		r.scorers[s.Name] = s
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewScoringResolver()

// Resolve canonicalizes id with the package default resolver.
func Resolve(id string) (string, error) {
	return defaultResolver.Resolve(id)
}

// Resolve returns the canonical scorer name for id. An empty id selects
// DefaultScoring and emits a DefaultScoringWarning the first time only.
func (r *ScoringResolver) Resolve(id string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		r.warnOnce.Do(func() {
			if r.notify != nil {
				r.notify(errors.NewDefaultScoringWarning(DefaultScoring))
			}
		})
		return DefaultScoring, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	if _, ok := r.scorers[key]; !ok {
		return "", errors.NewUnknownScoringError(id, r.namesLocked())
	}
	return key, nil
}

// Scorer resolves id and returns its scorer.
func (r *ScoringResolver) Scorer(id string) (Scorer, error) {
	name, err := r.Resolve(id)
	if err != nil {
		return Scorer{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scorers[name], nil
}

// Register adds or replaces a scorer. Names are stored lower case.
func (r *ScoringResolver) Register(s Scorer) error {
	if s.Name == "" || s.Score == nil {
		return errors.NewValueError("ScoringResolver.Register", "scorer needs a name and a score function")
	}
	s.Name = strings.ToLower(s.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorers[s.Name] = s
	return nil
}

// Names returns the canonical scorer names in sorted order.
func (r *ScoringResolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Aliases returns a copy of the alias table.
func (r *ScoringResolver) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

func (r *ScoringResolver) namesLocked() []string {
	names := make([]string, 0, len(r.scorers))
	for name := range r.scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type vecMetric func(yTrue, yPred *mat.VecDense) (float64, error)

// predictionScorer predicts X and compares the single output column with y.
func predictionScorer(name string, task Task, sign float64, metric vecMetric) Scorer {
	return Scorer{
		Name: name,
		Task: task,
		Score: func(est model.Predictor, X, y mat.Matrix) (float64, error) {
			pred, err := est.Predict(X)
			if err != nil {
				return 0, err
			}
			yTrue, err := metrics.ColumnVector(name, y)
			if err != nil {
				return 0, err
			}
			yPred, err := metrics.ColumnVector(name, pred)
			if err != nil {
				return 0, err
			}
			v, err := metric(yTrue, yPred)
			if err != nil {
				return 0, err
			}
			if sign < 0 {
				return -v, nil
			}
			return v, nil
		},
	}
}

func builtinScorers() []Scorer {
	return []Scorer{
		predictionScorer("neg_mean_squared_error", Regression, -1, metrics.MSE),
		predictionScorer("neg_root_mean_squared_error", Regression, -1, metrics.RMSE),
		predictionScorer("neg_mean_absolute_error", Regression, -1, metrics.MAE),
		predictionScorer("neg_mean_absolute_percentage_error", Regression, -1, metrics.MAPE),
		predictionScorer("r2", Regression, 1, metrics.R2Score),
		predictionScorer("explained_variance", Regression, 1, metrics.ExplainedVarianceScore),
		predictionScorer("accuracy", Classification, 1, metrics.Accuracy),
	}
}

// IsErrorScoring reports whether name is one of the negated error scorers,
// for which a point mean squared error is meaningful.
func IsErrorScoring(name string) bool {
	return strings.HasPrefix(name, "neg_")
}

// finite maps NaN scores to -Inf so they never win a comparison.
func finite(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
