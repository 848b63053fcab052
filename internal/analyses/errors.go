package analyses

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound covers unknown, expired and malformed job ids alike.
	ErrNotFound = errors.New("analysis not found")
	// ErrStillProcessing is returned by Result while the job has no outcome yet.
	ErrStillProcessing = errors.New("analysis still processing")
)

// JobFailedError is returned by Result for a job that ended in failure.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return "analysis failed"
	}
	return "analysis failed: " + e.Message
}
