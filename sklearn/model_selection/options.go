package model_selection

import (
	"time"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
)

// Observer receives search and evaluation telemetry. Implementations must
// be safe for concurrent use.
type Observer interface {
	// CandidateEvaluated is called once per candidate after all its folds.
	CandidateEvaluated(estimator string, candidate int, meanScore float64, fitTime time.Duration)
	// SearchCompleted is called when a search ends, with err nil on success.
	SearchCompleted(estimator string, kind Kind, candidates int, elapsed time.Duration, err error)
	// EvaluationCompleted is called when Evaluator.FitAndScore ends.
	EvaluationCompleted(estimator string, samples int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) CandidateEvaluated(string, int, float64, time.Duration) {}
func (nopObserver) SearchCompleted(string, Kind, int, time.Duration, error) {}
func (nopObserver) EvaluationCompleted(string, int, time.Duration, error) {}

// settings are shared by GridSearch, Evaluator and MultiSearch.
type settings struct {
	logger      log.Logger
	resolver    *ScoringResolver
	observer    Observer
	transformer model.Transformer
	store       Store
	warn        func(error)

	saveResult bool
	filename   string
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:   log.Nop(),
		resolver: defaultResolver,
		observer: nopObserver{},
		warn:     errors.Warn,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures GridSearch, Evaluator and MultiSearch.
type Option func(*settings)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResolver replaces the package default scoring resolver.
func WithResolver(r *ScoringResolver) Option {
	return func(s *settings) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithObserver installs a telemetry observer.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTransformer adds a preprocessing step to the Evaluator. During
// cross-validation t is fitted on each fold's training rows only; the final
// fit uses the whole sample. Only the Evaluator uses it.
func WithTransformer(t model.Transformer) Option {
	return func(s *settings) {
		s.transformer = t
	}
}

// WithStore sets where MultiSearch persists its record when saving is
// enabled.
func WithStore(store Store) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithSaveResult makes GridSearch persist its result through the store
// once Fit succeeds. An empty filename saves to <TypeName>.results.
// MultiSearch ignores it and follows MultiSearchConfig.SaveJob.
func WithSaveResult(filename string) Option {
	return func(s *settings) {
		s.saveResult = true
		s.filename = filename
	}
}

// WithWarningHandler routes advisory warnings (unused options) to fn
// instead of errors.Warn.
func WithWarningHandler(fn func(error)) Option {
	return func(s *settings) {
		if fn != nil {
			s.warn = fn
		}
	}
}
