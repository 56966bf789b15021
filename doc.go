// Package searchcv runs cross-validated hyperparameter searches over
// several estimators and keeps the winners.
//
// searchcv offers a scikit-learn-like API on top of gonum matrices. A
// MultiSearch takes an ordered list of estimators with their parameter
// grids, runs an exhaustive or randomized search for each, re-evaluates
// every best estimator on a prefix sample of the data and returns an
// aggregate record that can be saved and loaded again.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/searchcv/sklearn/linear_model"
//	    ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
//	    y := mat.NewDense(8, 1, []float64{3, 5, 7, 9, 11, 13, 15, 17})
//
//	    record, err := ms.NewMultiSearch(ms.MultiSearchConfig{
//	        Estimators: []interface{}{linear_model.NewRidge(), linear_model.NewLinearRegression()},
//	        Grids:      [][]ms.Grid{{{"alpha": {0.1, 1.0}}}, {{}}},
//	        CVFolds:    4,
//	        Scoring:    "r2",
//	    }).Run(X, y)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, name := range record.Names() {
//	        e, _ := record.Get(name)
//	        fmt.Println(name, e.BestParams, e.BestScore)
//	    }
//	}
//
// # Packages
//
//   - sklearn/model_selection: scoring, search, evaluation, multi-search and result store
//   - sklearn/linear_model, sklearn/tree: estimators registered by type name
//   - core/model: estimator interfaces, registry and snapshots
//   - core/parallel: bounded parallel fold execution
//   - metrics, preprocessing: score functions and scalers
//   - report: terminal summaries and cv-score plots
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// The searchcv command in cmd/searchcv drives all of this from a YAML file.
package searchcv
