// Package errors provides the error taxonomy and warning channel shared by
// every searchcv package.
//
// All constructors attach a stack trace through cockroachdb/errors, and every
// structured error implements zerolog.LogObjectMarshaler so it can be logged
// as an object rather than a flat string.
package errors

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("searchcv-warning: %v\n", w)
	}
)

// SetWarningHandler replaces the process-wide warning handler and returns the
// previous one so callers (usually tests) can restore it.
//
//	prev := errors.SetWarningHandler(func(w error) {})
//	defer errors.SetWarningHandler(prev)
func SetWarningHandler(handler func(w error)) func(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	prev := warningHandler
	warningHandler = handler
	return prev
}

// Warn emits a non-fatal advisory through the configured handler.
func Warn(w error) {
	warningMutex.Lock()
	handler := warningHandler
	warningMutex.Unlock()

	if handler != nil {
		handler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// ConvergenceWarning is raised when an iterative solver stops at max_iter.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DefaultScoringWarning is emitted once per resolver when no scoring
// identifier was supplied and the default metric is used instead.
type DefaultScoringWarning struct {
	Default string
}

func (w *DefaultScoringWarning) Error() string {
	return fmt.Sprintf("no scoring given; falling back to %q. Pass an explicit scoring to silence this warning", w.Default)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DefaultScoringWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("default", w.Default).Str("type", "DefaultScoringWarning")
}

// NewDefaultScoringWarning creates a DefaultScoringWarning.
func NewDefaultScoringWarning(def string) *DefaultScoringWarning {
	return &DefaultScoringWarning{Default: def}
}

// UnusedOptionWarning reports an extra search option that no strategy consumes.
// The option is still carried through to the result.
type UnusedOptionWarning struct {
	Option string
	Kind   string
}

func (w *UnusedOptionWarning) Error() string {
	return fmt.Sprintf("option %q is not used by %s and is passed through unchanged", w.Option, w.Kind)
}

// NewUnusedOptionWarning creates an UnusedOptionWarning.
func NewUnusedOptionWarning(option, kind string) *UnusedOptionWarning {
	return &UnusedOptionWarning{Option: option, Kind: kind}
}

// ===========================================================================
//
//	Structured errors
//
// ===========================================================================

// InvalidConfigurationError reports a malformed search or evaluation setup:
// mismatched input lengths, bad fold counts, out-of-range fractions, or
// malformed parameter grids. It is always raised before any fitting starts.
type InvalidConfigurationError struct {
	Op     string
	Param  string
	Reason string
	Value  interface{}
	// GridIndex locates the offending sub-grid; -1 when not grid related.
	GridIndex int
}

func (e *InvalidConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "searchcv: %s: invalid configuration for '%s': %s", e.Op, e.Param, e.Reason)
	if e.GridIndex >= 0 {
		fmt.Fprintf(&b, " (grid %d)", e.GridIndex)
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " (got: %v)", e.Value)
	}
	return b.String()
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *InvalidConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Int("grid_index", e.GridIndex).
		Str("type", "InvalidConfigurationError")
}

// NewInvalidConfigurationError creates an InvalidConfigurationError with a stack trace.
func NewInvalidConfigurationError(op, param, reason string, value interface{}) error {
	return errors.WithStack(&InvalidConfigurationError{
		Op: op, Param: param, Reason: reason, Value: value, GridIndex: -1,
	})
}

// NewInvalidGridError creates an InvalidConfigurationError pointing at one sub-grid.
func NewInvalidGridError(op string, gridIndex int, param, reason string) error {
	return errors.WithStack(&InvalidConfigurationError{
		Op: op, Param: param, Reason: reason, GridIndex: gridIndex,
	})
}

// EstimatorError reports a candidate that cannot be used as a predictor:
// nil values, factories that fail, missing Fit or Predict, or parameters
// the estimator cannot accept.
type EstimatorError struct {
	Estimator string
	Reason    string
	Err       error
}

func (e *EstimatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("searchcv: estimator %s: %s: %v", e.Estimator, e.Reason, e.Err)
	}
	return fmt.Sprintf("searchcv: estimator %s: %s", e.Estimator, e.Reason)
}

func (e *EstimatorError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *EstimatorError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("estimator", e.Estimator).
		Str("reason", e.Reason).
		Str("type", "EstimatorError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewEstimatorError creates an EstimatorError with a stack trace.
func NewEstimatorError(estimator, reason string, cause error) error {
	return errors.WithStack(&EstimatorError{Estimator: estimator, Reason: reason, Err: cause})
}

// UnknownScoringError reports a scoring identifier outside the registry.
type UnknownScoringError struct {
	Scoring string
	Known   []string
}

func (e *UnknownScoringError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("searchcv: unknown scoring %q; known scorers: %s", e.Scoring, strings.Join(known, ", "))
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnknownScoringError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("scoring", e.Scoring).
		Strs("known", e.Known).
		Str("type", "UnknownScoringError")
}

// NewUnknownScoringError creates an UnknownScoringError with a stack trace.
func NewUnknownScoringError(scoring string, known []string) error {
	return errors.WithStack(&UnknownScoringError{Scoring: scoring, Known: known})
}

// SerializationError reports a result value that cannot be persisted, or a
// job file that cannot be encoded or decoded.
type SerializationError struct {
	Path  string
	Entry string
	Key   string
	Type  string
	Err   error
}

func (e *SerializationError) Error() string {
	var b strings.Builder
	b.WriteString("searchcv: cannot serialize")
	if e.Entry != "" {
		fmt.Fprintf(&b, " entry %q", e.Entry)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key %q", e.Key)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, " of type %s", e.Type)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SerializationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("entry", e.Entry).
		Str("key", e.Key).
		Str("value_type", e.Type).
		Str("type", "SerializationError")
}

// NewSerializationError creates a SerializationError for a single value.
func NewSerializationError(entry, key, typ string) error {
	return errors.WithStack(&SerializationError{Entry: entry, Key: key, Type: typ})
}

// WrapSerializationError wraps an encoding failure for the given path.
func WrapSerializationError(path string, cause error) error {
	return errors.WithStack(&SerializationError{Path: path, Err: cause})
}

// SearchError wraps a failure raised while fitting or scoring one candidate
// on one fold, or refitting the winner (Fold < 0). The whole search is
// aborted when it occurs.
type SearchError struct {
	Estimator string
	Candidate int
	Fold      int
	Scoring   string
	Err       error
}

func (e *SearchError) Error() string {
	if e.Fold < 0 {
		return fmt.Sprintf("searchcv: search for %s failed refitting candidate %d (scoring %s): %v",
			e.Estimator, e.Candidate, e.Scoring, e.Err)
	}
	return fmt.Sprintf("searchcv: search for %s failed at candidate %d, fold %d (scoring %s): %v",
		e.Estimator, e.Candidate, e.Fold, e.Scoring, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SearchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("estimator", e.Estimator).
		Int("candidate", e.Candidate).
		Int("fold", e.Fold).
		Str("scoring", e.Scoring).
		Str("type", "SearchError")
}

// NewSearchError creates a SearchError with a stack trace.
func NewSearchError(estimator string, candidate, fold int, scoring string, cause error) error {
	return errors.WithStack(&SearchError{
		Estimator: estimator, Candidate: candidate, Fold: fold, Scoring: scoring, Err: cause,
	})
}

// NotFittedError is returned when Predict or Transform runs before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("searchcv: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports an input whose shape does not match expectations.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("searchcv: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError reports an argument with an unusable value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("searchcv: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

var (
	// ErrEmptyData is returned when an operation receives zero rows.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a linear system cannot be solved.
	ErrSingularMatrix = New("singular matrix")
)
