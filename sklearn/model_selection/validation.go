package model_selection

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/parallel"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

// foldResult is the outcome of fitting one candidate on one fold.
type foldResult struct {
	TestScore  float64
	TrainScore float64
	FitTime    time.Duration
}

// fitAndScoreFold fits a fresh model for params on the fold's training rows
// and scores it on the test rows. Panics inside the estimator are returned
// as errors.
func fitAndScoreFold(est *Estimator, params Params, X, y mat.Matrix, fold CVFold, scorer Scorer, withTrain bool) (res foldResult, err error) {
	defer errors.Recover(&err, "fitAndScoreFold")

	m, err := est.Spawn(params)
	if err != nil {
		return res, err
	}

	XTrain, yTrain := extractRows(X, fold.TrainIndices), extractRows(y, fold.TrainIndices)
	start := time.Now()
	if err := m.Fit(XTrain, yTrain); err != nil {
		return res, errors.Wrap(err, "fit")
	}
	res.FitTime = time.Since(start)

	XTest, yTest := extractRows(X, fold.TestIndices), extractRows(y, fold.TestIndices)
	if res.TestScore, err = scorer.Score(m, XTest, yTest); err != nil {
		return res, errors.Wrap(err, "score test fold")
	}
	if withTrain {
		if res.TrainScore, err = scorer.Score(m, XTrain, yTrain); err != nil {
			return res, errors.Wrap(err, "score train fold")
		}
	}
	return res, nil
}

// crossValidate evaluates params on every fold with up to workers folds in
// flight. Shared estimators are always evaluated sequentially.
func crossValidate(ctx context.Context, est *Estimator, params Params, X, y mat.Matrix, folds []CVFold, scorer Scorer, workers int) ([]float64, error) {
	if est.Shared() {
		workers = 1
	}
	scores := make([]float64, len(folds))
	err := parallel.ForEach(ctx, len(folds), workers, func(_ context.Context, f int) error {
		res, err := fitAndScoreFold(est, params, X, y, folds[f], scorer, false)
		if err != nil {
			return errors.NewSearchError(est.Name(), 0, f, scorer.Name, err)
		}
		scores[f] = res.TestScore
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// CrossValScore returns the per-fold scores of estimator under scoring.
// Folds are stratified for classification scorers.
func CrossValScore(estimator interface{}, X, y mat.Matrix, cvFolds int, scoring string) ([]float64, error) {
	est, err := Materialize(estimator)
	if err != nil {
		return nil, err
	}
	if err := checkXY("CrossValScore", X, y); err != nil {
		return nil, err
	}
	scorer, err := defaultResolver.Scorer(scoring)
	if err != nil {
		return nil, err
	}
	folds, err := splitterFor(scorer.Task, cvFolds).Split(X, y)
	if err != nil {
		return nil, err
	}
	return crossValidate(context.Background(), est, nil, X, y, folds, scorer, 1)
}

// checkXY validates that X and y are non-empty and row aligned, with a
// single target column.
func checkXY(op string, X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewInvalidConfigurationError(op, "X", "data is nil", nil)
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewInvalidConfigurationError(op, "X", "data is empty", nil)
	}
	if rows != yRows {
		return errors.NewInvalidConfigurationError(op, "y",
			"X and y must have the same number of rows", [2]int{rows, yRows})
	}
	if yCols != 1 {
		return errors.NewInvalidConfigurationError(op, "y", "expected a single target column", yCols)
	}
	return nil
}
