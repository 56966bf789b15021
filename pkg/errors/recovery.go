package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a panic recovered from user estimator code during fitting,
// predicting or scoring. The search engine converts these into ordinary
// errors so a misbehaving candidate aborts the search instead of the process.
type PanicError struct {
	// PanicValue is the value passed to panic().
	PanicValue interface{}

	// StackTrace is the goroutine stack captured at recovery time.
	StackTrace string

	// Operation names the guarded call, e.g. "LinearRegression.Fit".
	Operation string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the captured stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a PanicError for the given operation.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error assigned to *err. Use it deferred:
//
//	func (s *GridSearch) fitOne(...) (err error) {
//	    defer errors.Recover(&err, "GridSearch.fitOne")
//	    ...
//	}
//
// An error already held in *err is kept in the chain.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(operation, r)
		if *err != nil {
			*err = Wrapf(*err, "%s", panicErr.Error())
			return
		}
		*err = panicErr
	}
}

// SafeExecute runs fn and turns any panic into a *PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
