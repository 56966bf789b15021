package model_selection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/metrics"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
)

// EvaluationOutcome is the result of Evaluator.FitAndScore.
type EvaluationOutcome struct {
	// MeanSquaredError and RootMeanSquaredError are measured on the
	// sampled training rows. They are nil for non-error scorers.
	MeanSquaredError     *float64
	RootMeanSquaredError *float64
	CVScores             []float64
	NSamples             int
	Scoring              string
}

// Mean returns the mean cross-validation score.
func (o *EvaluationOutcome) Mean() float64 {
	return stat.Mean(o.CVScores, nil)
}

// Std returns the population standard deviation of the scores.
func (o *EvaluationOutcome) Std() float64 {
	_, std := meanStd(o.CVScores)
	return std
}

// Evaluator fits a predictor on a deterministic prefix of the data and
// reports a point error plus cross-validated scores.
type Evaluator struct {
	settings

	mu     sync.RWMutex
	fitted model.Predictor
}

// NewEvaluator creates an Evaluator. WithTransformer adds a preprocessing
// step fitted on the sampled rows.
func NewEvaluator(opts ...Option) *Evaluator {
	return &Evaluator{settings: newSettings(opts)}
}

// FitAndScore samples the first floor(sampleFraction*n) rows, with no
// shuffling, fits predictor on them and cross-validates it with cvFolds
// folds under scoring. The prefix sample is a cost control, not a random
// sample: data sorted by target or time yields a biased subset.
//
// A model instance is fitted in place and owned by the caller afterwards;
// factories produce a fresh model that Predict then uses.
func (e *Evaluator) FitAndScore(predictor interface{}, X, y mat.Matrix, sampleFraction float64, cvFolds int, scoring string) (*EvaluationOutcome, error) {
	return e.FitAndScoreContext(context.Background(), predictor, X, y, sampleFraction, cvFolds, scoring)
}

// FitAndScoreContext is FitAndScore with cancellation.
func (e *Evaluator) FitAndScoreContext(ctx context.Context, predictor interface{}, X, y mat.Matrix, sampleFraction float64, cvFolds int, scoring string) (out *EvaluationOutcome, err error) {
	const op = "Evaluator.FitAndScore"
	start := time.Now()
	name := model.TypeName(predictor)
	samples := 0
	defer func() {
		e.observer.EvaluationCompleted(name, samples, time.Since(start), err)
	}()

	if math.IsNaN(sampleFraction) || sampleFraction <= 0 || sampleFraction > 1 {
		return nil, errors.NewInvalidConfigurationError(op, "sample_fraction", "must be in (0, 1]", sampleFraction)
	}
	if cvFolds < 2 {
		return nil, errors.NewInvalidConfigurationError(op, "cv_folds", "must be at least 2", cvFolds)
	}
	if err := checkXY(op, X, y); err != nil {
		return nil, err
	}
	est, err := Materialize(predictor)
	if err != nil {
		return nil, err
	}
	name = est.Name()
	scorer, err := e.resolver.Scorer(scoring)
	if err != nil {
		return nil, err
	}

	samples = int(math.Floor(sampleFraction * float64(rowsOf(X))))
	if samples < cvFolds {
		return nil, errors.NewInvalidConfigurationError(op, "sample_fraction",
			fmt.Sprintf("sample of %d rows is smaller than cv_folds=%d", samples, cvFolds), sampleFraction)
	}

	logger := e.logger.With(
		log.ComponentKey, "evaluator",
		log.ModelNameKey, name,
		log.ScoringKey, scorer.Name,
	)
	logger.Info("Evaluation started",
		log.PhaseKey, log.PhaseEvaluation,
		log.SampleFracKey, sampleFraction,
		log.SamplesKey, samples,
		log.FoldsKey, cvFolds,
	)

	Xs, ys := prefixRows(X, samples), prefixRows(y, samples)
	folds, err := splitterFor(scorer.Task, cvFolds).Split(Xs, ys)
	if err != nil {
		return nil, err
	}
	cvEst := est
	if e.transformer != nil {
		cvEst = withTransformer(est, e.transformer)
	}
	// One fold at a time: the transformer is refitted in place per fold.
	scores, err := crossValidate(ctx, cvEst, nil, Xs, ys, folds, scorer, 1)
	if err != nil {
		return nil, err
	}

	var Xt mat.Matrix = Xs
	if e.transformer != nil {
		if Xt, err = e.transformer.FitTransform(Xs); err != nil {
			return nil, errors.Wrap(err, "transform sample")
		}
	}

	final := est.Instance()
	if err := errors.SafeExecute(op, func() error { return final.Fit(Xt, ys) }); err != nil {
		return nil, errors.NewEstimatorError(name, "fit failed", err)
	}

	out = &EvaluationOutcome{CVScores: scores, NSamples: samples, Scoring: scorer.Name}
	if IsErrorScoring(scorer.Name) {
		pred, err := final.Predict(Xt)
		if err != nil {
			return nil, errors.NewEstimatorError(name, "predict failed", err)
		}
		mse, err := metrics.MSEMatrix(ys, pred)
		if err != nil {
			return nil, err
		}
		rmse := math.Sqrt(mse)
		out.MeanSquaredError = &mse
		out.RootMeanSquaredError = &rmse
	}

	e.mu.Lock()
	e.fitted = final
	e.mu.Unlock()

	fields := []any{log.CVScoresKey, scores, log.DurationMsKey, time.Since(start).Milliseconds()}
	if out.MeanSquaredError != nil {
		fields = append(fields, log.MSEKey, *out.MeanSquaredError, log.RMSEKey, *out.RootMeanSquaredError)
	}
	logger.Info("Evaluation completed", fields...)
	return out, nil
}

// pipelineModel fits its transformer on the training rows it is given and
// transforms every input before the predictor sees it.
type pipelineModel struct {
	transformer model.Transformer
	predictor   model.Model
}

func (p *pipelineModel) Fit(X, y mat.Matrix) error {
	Xt, err := p.transformer.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "transform")
	}
	return p.predictor.Fit(Xt, y)
}

func (p *pipelineModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transformer.Transform(X)
	if err != nil {
		return nil, errors.Wrap(err, "transform")
	}
	return p.predictor.Predict(Xt)
}

// withTransformer wraps est so each fold fits t on its training rows only.
// Test rows are transformed with statistics they did not contribute to.
func withTransformer(est *Estimator, t model.Transformer) *Estimator {
	return &Estimator{
		name: est.Name(),
		factory: func() (model.Model, error) {
			m, err := est.Spawn(nil)
			if err != nil {
				return nil, err
			}
			return &pipelineModel{transformer: t, predictor: m}, nil
		},
	}
}

// Predict runs the last fitted predictor, applying the transformer first
// when one is configured.
func (e *Evaluator) Predict(X mat.Matrix) (mat.Matrix, error) {
	e.mu.RLock()
	fitted := e.fitted
	e.mu.RUnlock()
	if fitted == nil {
		return nil, errors.NewNotFittedError("Evaluator", "Predict")
	}
	if e.transformer != nil {
		Xt, err := e.transformer.Transform(X)
		if err != nil {
			return nil, err
		}
		X = Xt
	}
	return fitted.Predict(X)
}
