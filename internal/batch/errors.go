package batch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotCompleted is returned when results are requested for a job that
// has not reached the completed state.
var ErrNotCompleted = errors.New("batch is not completed")

// UploadError is returned when the batch payload cannot be stored with the
// provider, either because the transport failed or the provider answered
// with a non-2xx status.
type UploadError struct {
	StatusCode int    // 0 when the request never got a response
	Body       string // raw response body, if any
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("batch file upload failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("batch file upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError is returned when the provider rejects batch creation.
// Body carries the raw response for diagnostics.
type SubmissionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("batch submission rejected (status %d)", e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// BatchTimeoutError is returned when a job stays pending past the polling budget.
type BatchTimeoutError struct {
	JobID      string
	LastStatus string
	Elapsed    time.Duration
	Budget     time.Duration
}

func (e *BatchTimeoutError) Error() string {
	return fmt.Sprintf("batch %s still %q after %s (budget %s)", e.JobID, e.LastStatus, e.Elapsed, e.Budget)
}

// BatchFailedError is returned when a job reached the failed state.
type BatchFailedError struct {
	JobID  string
	Status string
	Errors []string
}

func (e *BatchFailedError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("batch %s %s", e.JobID, e.Status)
	}
	return fmt.Sprintf("batch %s %s: %s", e.JobID, e.Status, strings.Join(e.Errors, "; "))
}

// JSONRecoveryError records a response whose content could not be repaired
// into a JSON object.
type JSONRecoveryError struct {
	CustomID string
	Content  string
	Err      error
}

func (e *JSONRecoveryError) Error() string {
	return fmt.Sprintf("record %s: unrecoverable JSON: %v", e.CustomID, e.Err)
}

func (e *JSONRecoveryError) Unwrap() error { return e.Err }
