// Package apperr holds error kinds shared across domains.
package apperr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ValidationError is a client input problem. Its message is safe to show to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validation returns a *ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AsValidation reports whether err wraps a *ValidationError and returns it.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
