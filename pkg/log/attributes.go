package log

// Attribute keys follow a dotted hierarchy ("model.name", "search.kind") so
// log pipelines can group and filter by prefix.

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "Ridge".
	ModelNameKey = "model.name"

	// OperationKey names the ML operation: "fit", "predict", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies the emitting component, e.g. "grid_search".
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"

	// HyperParamsKey carries a hyperparameter assignment.
	HyperParamsKey = "model.hyperparams"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
)

// Search and cross-validation.
const (
	// RunIDKey tags every record of one multi-search run.
	RunIDKey = "run.id"

	// EntryKey is the (possibly suffixed) result name of an estimator.
	EntryKey = "run.entry"

	SearchKindKey   = "search.kind"
	CandidatesKey   = "search.candidates"
	CandidateKey    = "search.candidate"
	GridIndexKey    = "search.grid_index"
	ScoringKey      = "search.scoring"
	BestScoreKey    = "search.best_score"
	BestParamsKey   = "search.best_params"
	FoldsKey        = "cv.folds"
	FoldKey         = "cv.fold"
	CVScoresKey     = "cv.scores"
	WorkersKey      = "cv.workers"
	SampleFracKey   = "eval.sample_fraction"
	MSEKey          = "metrics.mse"
	RMSEKey         = "metrics.rmse"
	StorePathKey    = "store.path"
	StoreEntriesKey = "store.entries"
)

// Performance.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationSearch       = "search"
	OperationEvaluate     = "evaluate"
	OperationSave         = "save"
	OperationLoad         = "load"

	PhaseValidation = "validation"
	PhaseSearching  = "searching"
	PhaseRefit      = "refit"
	PhaseEvaluation = "evaluation"
	PhasePersist    = "persist"
)
