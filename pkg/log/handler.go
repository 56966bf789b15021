package log

import (
	"github.com/cockroachdb/errors"
)

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the formatted stack of WithStack.
func extractStacktrace(err error) string {
	for cur := err; cur != nil; cur = errors.UnwrapOnce(cur) {
		if details := errors.GetSafeDetails(cur).SafeDetails; len(details) > 0 {
			return details[0]
		}
	}
	return ""
}
