package gateway

import (
	"fmt"
)

// ExternalServiceError means the analysis service answered but rejected the
// request or returned something that is not a usable report.
type ExternalServiceError struct {
	StatusCode int
	Message    string
}

func (e *ExternalServiceError) Error() string {
	return e.Message
}

// ExternalServiceUnavailable means no response was received: connection
// failure, timeout, or cancellation.
type ExternalServiceUnavailable struct {
	Cause error
}

func (e *ExternalServiceUnavailable) Error() string {
	if e.Cause == nil {
		return "analysis service unavailable"
	}
	return fmt.Sprintf("analysis service unavailable: %v", e.Cause)
}

func (e *ExternalServiceUnavailable) Unwrap() error {
	return e.Cause
}
