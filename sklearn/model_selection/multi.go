package model_selection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
)

// DefaultMultiCVFolds is the fold count of a multi-estimator run when none
// is given.
const DefaultMultiCVFolds = 7

// Entry is the result of one estimator in a multi-estimator run.
type Entry struct {
	// Name is the record key: the type name, suffixed with _<index> when
	// the same type appears more than once in the input.
	Name     string
	TypeName string

	BestParams         Params
	BestEstimator      model.Model
	BestScore          float64
	CVResults          CVResults
	FeatureImportances []float64

	GridParams   []Grid
	ExtraOptions map[string]interface{}
	Scoring      string

	// BestScores is the re-evaluation of BestEstimator by the Evaluator.
	BestScores *EvaluationOutcome
}

// AggregateRecord collects the entries of one run in input order.
type AggregateRecord struct {
	RunID     string
	Scoring   string
	CVFolds   int
	Kind      Kind
	CreatedAt time.Time
	Entries   []*Entry
}

// Get returns the entry called name.
func (r *AggregateRecord) Get(name string) (*Entry, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Names returns entry names in input order.
func (r *AggregateRecord) Names() []string {
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		names[i] = e.Name
	}
	return names
}

// MultiSearchConfig describes a run over several estimators. Estimators[i]
// is searched over Grids[i].
type MultiSearchConfig struct {
	Estimators []interface{}
	Grids      [][]Grid

	// CVFolds is used for every search and re-evaluation; 0 selects
	// DefaultMultiCVFolds.
	CVFolds int
	Scoring string
	Kind    Kind

	// ExtraOptions are passed to every search.
	ExtraOptions map[string]interface{}

	// SampleFraction is the prefix fraction used to re-evaluate each
	// winner; 0 selects 1.0.
	SampleFraction float64

	// SaveJob persists the complete record once every estimator finished.
	SaveJob bool
	// Filename is the destination; empty derives it from the type names.
	Filename string
}

// MultiSearch searches several estimators in turn, re-evaluates each
// winner and optionally persists the aggregate record.
type MultiSearch struct {
	cfg MultiSearchConfig
	settings
}

// NewMultiSearch creates a multi-estimator run.
func NewMultiSearch(cfg MultiSearchConfig, opts ...Option) *MultiSearch {
	return &MultiSearch{cfg: cfg, settings: newSettings(opts)}
}

// Run executes the searches sequentially in input order.
func (ms *MultiSearch) Run(X, y mat.Matrix) (*AggregateRecord, error) {
	return ms.RunContext(context.Background(), X, y)
}

// RunContext validates every estimator/grid pair before fitting anything,
// then runs them in input order. Any failure aborts the run and nothing is
// persisted. When saving fails the complete record is returned together
// with the error.
func (ms *MultiSearch) RunContext(ctx context.Context, X, y mat.Matrix) (*AggregateRecord, error) {
	const op = "MultiSearch.Run"
	cfg := ms.cfg

	if len(cfg.Estimators) != len(cfg.Grids) {
		return nil, errors.NewInvalidConfigurationError(op, "grids",
			fmt.Sprintf("got %d estimators and %d grids; lengths must match", len(cfg.Estimators), len(cfg.Grids)),
			nil)
	}
	if len(cfg.Estimators) == 0 {
		return nil, errors.NewInvalidConfigurationError(op, "estimators", "at least one estimator is required", nil)
	}
	if cfg.CVFolds == 0 {
		cfg.CVFolds = DefaultMultiCVFolds
	}
	if cfg.SampleFraction == 0 {
		cfg.SampleFraction = 1.0
	}
	if cfg.SampleFraction < 0 || cfg.SampleFraction > 1 {
		return nil, errors.NewInvalidConfigurationError(op, "sample_fraction", "must be in (0, 1]", cfg.SampleFraction)
	}
	scoring, err := ms.resolver.Resolve(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	opts, err := ParseOptions(op, cfg.Kind, cfg.ExtraOptions, ms.warn)
	if err != nil {
		return nil, err
	}

	plans := make([]*searchPlan, len(cfg.Estimators))
	for i := range cfg.Estimators {
		spec := SearchSpec{
			Estimator:    cfg.Estimators[i],
			Grid:         cfg.Grids[i],
			CVFolds:      cfg.CVFolds,
			Scoring:      scoring,
			Kind:         cfg.Kind,
			ExtraOptions: cfg.ExtraOptions,
		}
		if plans[i], err = planWithOptions(op, spec, opts, X, y, ms.settings); err != nil {
			return nil, errors.Wrapf(err, "estimator %d", i)
		}
	}
	names := entryNames(plans)

	record := &AggregateRecord{
		RunID:     uuid.NewString(),
		Scoring:   scoring,
		CVFolds:   cfg.CVFolds,
		Kind:      cfg.Kind,
		CreatedAt: time.Now().UTC(),
		Entries:   make([]*Entry, 0, len(plans)),
	}
	logger := ms.logger.With(log.RunIDKey, record.RunID)
	logger.Info("Multi-estimator run started",
		log.PhaseKey, log.PhaseValidation,
		"run.estimators", len(plans),
		log.ScoringKey, scoring,
		log.FoldsKey, cfg.CVFolds,
	)

	s := ms.settings
	s.logger = logger
	evaluator := NewEvaluator()
	evaluator.settings = s

	for i, plan := range plans {
		entryLogger := logger.With(log.EntryKey, names[i])
		s.logger = entryLogger

		res, err := runSearch(ctx, plan, X, y, s)
		if err != nil {
			return nil, err
		}

		outcome, err := evaluator.FitAndScoreContext(ctx, res.BestEstimator, X, y, cfg.SampleFraction, cfg.CVFolds, scoring)
		if err != nil {
			return nil, errors.Wrapf(err, "re-evaluate %s", names[i])
		}

		record.Entries = append(record.Entries, &Entry{
			Name:               names[i],
			TypeName:           plan.est.Name(),
			BestParams:         res.BestParams,
			BestEstimator:      res.BestEstimator,
			BestScore:          res.BestScore,
			CVResults:          res.CVResults,
			FeatureImportances: res.FeatureImportances,
			GridParams:         plan.grids,
			ExtraOptions:       copyOptions(cfg.ExtraOptions),
			Scoring:            scoring,
			BestScores:         outcome,
		})
		entryLogger.Info("Entry completed",
			log.BestScoreKey, res.BestScore,
			log.BestParamsKey, res.BestParams.String(),
		)
	}

	if cfg.SaveJob {
		store := ms.store
		if store == nil {
			store = NewFileStore("")
		}
		path, err := store.Save(record, cfg.Filename)
		if err != nil {
			logger.Error("Saving run failed", err, log.PhaseKey, log.PhasePersist)
			return record, err
		}
		logger.Info("Run saved", log.PhaseKey, log.PhasePersist, log.StorePathKey, path)
	}
	return record, nil
}

// entryNames derives record keys from type names. Types that occur more
// than once are all suffixed with their input index.
func entryNames(plans []*searchPlan) []string {
	counts := make(map[string]int, len(plans))
	for _, p := range plans {
		counts[p.est.Name()]++
	}
	names := make([]string, len(plans))
	for i, p := range plans {
		names[i] = p.est.Name()
		if counts[names[i]] > 1 {
			names[i] = fmt.Sprintf("%s_%d", names[i], i)
		}
	}
	return names
}

func copyOptions(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
