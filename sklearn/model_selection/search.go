package model_selection

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/core/parallel"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
)

// DefaultCVFolds is the fold count of a single search when none is given.
const DefaultCVFolds = 4

// SearchSpec describes one hyperparameter search.
type SearchSpec struct {
	// Estimator is a model, a factory, or anything Materialize accepts.
	Estimator interface{}
	// Grid lists the parameter grids; at least one is required. A single
	// empty Grid evaluates the estimator's defaults.
	Grid []Grid
	// CVFolds is the number of folds; 0 selects DefaultCVFolds.
	CVFolds int
	// Scoring is a scorer name or alias; empty selects DefaultScoring.
	Scoring string
	// Kind selects exhaustive or randomized search.
	Kind Kind
	// ExtraOptions holds n_iter, random_state, n_jobs and
	// return_train_score.
	ExtraOptions map[string]interface{}
}

// SearchState is the lifecycle of a GridSearch.
type SearchState int32

// Search lifecycle states. A search moves from Idle through Validating and
// Searching to Completed, or to Failed from either of the middle states.
const (
	StateIdle SearchState = iota
	StateValidating
	StateSearching
	StateCompleted
	StateFailed
)

func (s SearchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSearching:
		return "searching"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// CVResults holds per-candidate cross-validation results, indexed by
// candidate in evaluation order.
type CVResults struct {
	Params           []Params
	SplitTestScores  [][]float64
	MeanTestScore    []float64
	StdTestScore     []float64
	RankTestScore    []int
	MeanFitTime      []float64 // seconds
	SplitTrainScores [][]float64
	MeanTrainScore   []float64
}

// Len returns the number of candidates.
func (r *CVResults) Len() int {
	return len(r.Params)
}

// SearchResult is the outcome of a completed search.
type SearchResult struct {
	EstimatorName string
	BestParams    Params
	// BestEstimator is refitted on all rows with BestParams.
	BestEstimator      model.Model
	BestScore          float64
	BestIndex          int
	CVResults          CVResults
	FeatureImportances []float64
	Scoring            string
	Kind               Kind
	CVFolds            int
	Options            Options
	// ExtraOptions is a copy of the options the search was given, including
	// keys passed through unused.
	ExtraOptions map[string]interface{}
	Elapsed      time.Duration
}

// Record wraps the result in a single-entry AggregateRecord so it can be
// handed to a Store.
func (r *SearchResult) Record(grids []Grid) *AggregateRecord {
	return &AggregateRecord{
		RunID:     uuid.NewString(),
		Scoring:   r.Scoring,
		CVFolds:   r.CVFolds,
		Kind:      r.Kind,
		CreatedAt: time.Now().UTC(),
		Entries: []*Entry{{
			Name:               r.EstimatorName,
			TypeName:           r.EstimatorName,
			BestParams:         r.BestParams,
			BestEstimator:      r.BestEstimator,
			BestScore:          r.BestScore,
			CVResults:          r.CVResults,
			FeatureImportances: r.FeatureImportances,
			GridParams:         grids,
			ExtraOptions:       r.ExtraOptions,
			Scoring:            r.Scoring,
		}},
	}
}

// searchPlan is a fully validated search, ready to run.
type searchPlan struct {
	est        *Estimator
	grids      []Grid
	cvFolds    int
	scorer     Scorer
	kind       Kind
	opts       Options
	candidates []Params
	folds      []CVFold
	extra      map[string]interface{}
}

// newSearchPlan validates spec against X and y without fitting anything.
func newSearchPlan(op string, spec SearchSpec, X, y mat.Matrix, s settings) (*searchPlan, error) {
	opts, err := ParseOptions(op, spec.Kind, spec.ExtraOptions, s.warn)
	if err != nil {
		return nil, err
	}
	return planWithOptions(op, spec, opts, X, y, s)
}

// planWithOptions is newSearchPlan with the extra options already parsed,
// so a multi run reports each unused option once.
func planWithOptions(op string, spec SearchSpec, opts Options, X, y mat.Matrix, s settings) (*searchPlan, error) {
	est, err := Materialize(spec.Estimator)
	if err != nil {
		return nil, err
	}
	if err := ValidateGrids(op, spec.Grid); err != nil {
		return nil, err
	}
	for _, g := range spec.Grid {
		if len(g) > 0 && !est.AcceptsParams() {
			return nil, errors.NewEstimatorError(est.Name(), "does not accept hyperparameters (no SetParams)", nil)
		}
	}

	cvFolds := spec.CVFolds
	if cvFolds == 0 {
		cvFolds = DefaultCVFolds
	}
	if cvFolds < 2 {
		return nil, errors.NewInvalidConfigurationError(op, "cv_folds", "must be at least 2", spec.CVFolds)
	}
	if spec.Kind != ExhaustiveGrid && spec.Kind != RandomizedSample {
		return nil, errors.NewInvalidConfigurationError(op, "kind", "unknown search kind", int(spec.Kind))
	}
	if total := TotalSize(spec.Grid); spec.Kind == ExhaustiveGrid && total > MaxExhaustiveCandidates {
		return nil, errors.NewInvalidConfigurationError(op, "grid",
			"too many candidates for an exhaustive search; use RandomizedSearchCV", total)
	}

	scorer, err := s.resolver.Scorer(spec.Scoring)
	if err != nil {
		return nil, err
	}
	if err := checkXY(op, X, y); err != nil {
		return nil, err
	}
	folds, err := splitterFor(scorer.Task, cvFolds).Split(X, y)
	if err != nil {
		return nil, err
	}

	grids := make([]Grid, len(spec.Grid))
	for i, g := range spec.Grid {
		grids[i] = g.Clone()
	}
	return &searchPlan{
		est:        est,
		grids:      grids,
		cvFolds:    cvFolds,
		scorer:     scorer,
		kind:       spec.Kind,
		opts:       opts,
		candidates: NewStrategy(spec.Kind, opts).Candidates(grids),
		folds:      folds,
		extra:      spec.ExtraOptions,
	}, nil
}

// GridSearch runs an exhaustive or randomized hyperparameter search with
// cross-validation and refits the best candidate on all rows.
//
//	gs := model_selection.NewGridSearch(model_selection.SearchSpec{
//	    Estimator: linear_model.NewRidge(),
//	    Grid:      []model_selection.Grid{{"alpha": {0.1, 1.0, 10.0}}},
//	    Scoring:   "nmse",
//	})
//	res, err := gs.Fit(X, y)
type GridSearch struct {
	spec SearchSpec
	settings

	state  atomic.Int32
	mu     sync.RWMutex
	result *SearchResult
}

// NewGridSearch creates a search for spec. Nothing is validated until Fit.
func NewGridSearch(spec SearchSpec, opts ...Option) *GridSearch {
	return &GridSearch{spec: spec, settings: newSettings(opts)}
}

// State returns the current lifecycle state.
func (gs *GridSearch) State() SearchState {
	return SearchState(gs.state.Load())
}

// Result returns the last successful result, or nil.
func (gs *GridSearch) Result() *SearchResult {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.result
}

// Fit validates the search inputs, evaluates every candidate on every fold and
// refits the winner.
func (gs *GridSearch) Fit(X, y mat.Matrix) (*SearchResult, error) {
	return gs.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation.
func (gs *GridSearch) FitContext(ctx context.Context, X, y mat.Matrix) (*SearchResult, error) {
	gs.state.Store(int32(StateValidating))
	plan, err := newSearchPlan("GridSearch.Fit", gs.spec, X, y, gs.settings)
	if err != nil {
		gs.state.Store(int32(StateFailed))
		gs.logger.Error("Search validation failed", err, log.PhaseKey, log.PhaseValidation)
		return nil, err
	}

	gs.state.Store(int32(StateSearching))
	res, err := runSearch(ctx, plan, X, y, gs.settings)
	if err != nil {
		gs.state.Store(int32(StateFailed))
		return nil, err
	}

	gs.mu.Lock()
	gs.result = res
	gs.mu.Unlock()
	gs.state.Store(int32(StateCompleted))

	if gs.saveResult {
		store := gs.store
		if store == nil {
			store = NewFileStore("")
		}
		path, err := store.Save(res.Record(plan.grids), gs.filename)
		if err != nil {
			gs.logger.Error("Saving result failed", err, log.PhaseKey, log.PhasePersist)
			return res, err
		}
		gs.logger.Info("Result saved", log.PhaseKey, log.PhasePersist, log.StorePathKey, path)
	}
	return res, nil
}

// Predict uses the refitted best estimator.
func (gs *GridSearch) Predict(X mat.Matrix) (mat.Matrix, error) {
	res := gs.Result()
	if res == nil {
		return nil, errors.NewNotFittedError("GridSearch", "Predict")
	}
	return res.BestEstimator.Predict(X)
}

// runSearch executes a validated plan.
func runSearch(ctx context.Context, plan *searchPlan, X, y mat.Matrix, s settings) (res *SearchResult, err error) {
	start := time.Now()
	name := plan.est.Name()
	logger := s.logger.With(
		log.ComponentKey, "grid_search",
		log.ModelNameKey, name,
		log.ScoringKey, plan.scorer.Name,
	)
	defer func() {
		s.observer.SearchCompleted(name, plan.kind, len(plan.candidates), time.Since(start), err)
		if err != nil {
			logger.Error("Search failed", err, log.PhaseKey, log.PhaseSearching)
		}
	}()

	nCand, nFolds := len(plan.candidates), len(plan.folds)
	tasks := nCand * nFolds
	workers := parallel.Workers(plan.opts.NJobs, tasks)
	if plan.est.Shared() {
		workers = 1
	}
	logger.Info("Search started",
		log.SearchKindKey, plan.kind.String(),
		log.CandidatesKey, nCand,
		log.FoldsKey, nFolds,
		log.WorkersKey, workers,
		log.SamplesKey, rowsOf(X),
	)

	results := make([][]foldResult, nCand)
	for c := range results {
		results[c] = make([]foldResult, nFolds)
	}
	err = parallel.ForEach(ctx, tasks, workers, func(_ context.Context, t int) error {
		c, f := t/nFolds, t%nFolds
		r, err := fitAndScoreFold(plan.est, plan.candidates[c], X, y, plan.folds[f], plan.scorer, plan.opts.ReturnTrainScore)
		if err != nil {
			return errors.NewSearchError(name, c, f, plan.scorer.Name, err)
		}
		results[c][f] = r
		logger.Debug("Fold scored",
			log.CandidateKey, c,
			log.FoldKey, f,
			log.HyperParamsKey, plan.candidates[c].String(),
			"score", r.TestScore,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	cv := aggregate(plan.candidates, results, plan.opts.ReturnTrainScore)
	for c := 0; c < nCand; c++ {
		s.observer.CandidateEvaluated(name, c, cv.MeanTestScore[c], time.Duration(cv.MeanFitTime[c]*float64(time.Second)))
	}
	best := bestIndex(cv.MeanTestScore)

	logger.Info("Refitting best candidate",
		log.PhaseKey, log.PhaseRefit,
		log.CandidateKey, best,
		log.BestParamsKey, cv.Params[best].String(),
	)
	fitted, err := refit(plan.est, cv.Params[best], X, y)
	if err != nil {
		return nil, errors.NewSearchError(name, best, -1, plan.scorer.Name, err)
	}

	res = &SearchResult{
		EstimatorName: name,
		BestParams:    cv.Params[best].Clone(),
		BestEstimator: fitted,
		BestScore:     cv.MeanTestScore[best],
		BestIndex:     best,
		CVResults:     cv,
		Scoring:       plan.scorer.Name,
		Kind:          plan.kind,
		CVFolds:       plan.cvFolds,
		Options:       plan.opts,
		ExtraOptions:  copyOptions(plan.extra),
		Elapsed:       time.Since(start),
	}
	if fi, ok := fitted.(model.FeatureImporter); ok {
		res.FeatureImportances = fi.FeatureImportances()
	}

	logger.Info("Search completed",
		log.BestScoreKey, res.BestScore,
		log.BestParamsKey, res.BestParams.String(),
		log.DurationMsKey, res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func refit(est *Estimator, params Params, X, y mat.Matrix) (m model.Model, err error) {
	defer errors.Recover(&err, "refit")
	if m, err = est.Spawn(params); err != nil {
		return nil, err
	}
	if err = m.Fit(mat.DenseCopyOf(X), mat.DenseCopyOf(y)); err != nil {
		return nil, errors.Wrap(err, "fit")
	}
	return m, nil
}

// aggregate computes mean, population std and rank per candidate.
func aggregate(candidates []Params, results [][]foldResult, withTrain bool) CVResults {
	n := len(candidates)
	cv := CVResults{
		Params:          make([]Params, n),
		SplitTestScores: make([][]float64, n),
		MeanTestScore:   make([]float64, n),
		StdTestScore:    make([]float64, n),
		MeanFitTime:     make([]float64, n),
	}
	if withTrain {
		cv.SplitTrainScores = make([][]float64, n)
		cv.MeanTrainScore = make([]float64, n)
	}
	for c, folds := range results {
		cv.Params[c] = candidates[c].Clone()
		test := make([]float64, len(folds))
		train := make([]float64, len(folds))
		var fit float64
		for f, r := range folds {
			test[f] = r.TestScore
			train[f] = r.TrainScore
			fit += r.FitTime.Seconds()
		}
		cv.SplitTestScores[c] = test
		cv.MeanTestScore[c], cv.StdTestScore[c] = meanStd(test)
		cv.MeanFitTime[c] = fit / float64(len(folds))
		if withTrain {
			cv.SplitTrainScores[c] = train
			cv.MeanTrainScore[c], _ = meanStd(train)
		}
	}
	cv.RankTestScore = rank(cv.MeanTestScore)
	return cv
}

func meanStd(x []float64) (mean, std float64) {
	mean, variance := stat.PopMeanVariance(x, nil)
	return mean, math.Sqrt(variance)
}

// bestIndex returns the index of the highest score; ties go to the lowest
// index and NaN never wins.
func bestIndex(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if finite(scores[i]) > finite(scores[best]) {
			best = i
		}
	}
	return best
}

// rank assigns 1 to the best score; equal scores share the lowest rank.
func rank(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return finite(scores[order[a]]) > finite(scores[order[b]])
	})
	ranks := make([]int, len(scores))
	for pos, idx := range order {
		if pos > 0 && finite(scores[idx]) == finite(scores[order[pos-1]]) {
			ranks[idx] = ranks[order[pos-1]]
			continue
		}
		ranks[idx] = pos + 1
	}
	return ranks
}

func rowsOf(X mat.Matrix) int {
	r, _ := X.Dims()
	return r
}
