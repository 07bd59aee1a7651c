package errors

import (
	"errors"
	"fmt"
)

// CreationError is returned when the backend could not create a content job
// or did not hand out a queue id.
type CreationError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *CreationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("job creation at %s failed with status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("job creation at %s failed: %v", e.Endpoint, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// FetchError is a non-404 failure while polling a job.
type FetchError struct {
	Endpoint string
	QueueID  string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("polling %s (queue %s) failed with status %d", e.Endpoint, e.QueueID, e.Status)
	}
	return fmt.Sprintf("polling %s (queue %s) failed: %v", e.Endpoint, e.QueueID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TimeoutError means the poll budget was spent without a ready payload.
type TimeoutError struct {
	Endpoint string
	QueueID  string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s at %s not ready after %d polls", e.QueueID, e.Endpoint, e.Attempts)
}

// SubmissionError records a failed result submission. It is logged, never
// shown to the participant.
type SubmissionError struct {
	Endpoint string
	QueueID  string
	Status   int
	Err      error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("submitting results to %s (queue %s) failed with status %d", e.Endpoint, e.QueueID, e.Status)
	}
	return fmt.Sprintf("submitting results to %s (queue %s) failed: %v", e.Endpoint, e.QueueID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// EvaluationError wraps any failure of the writing evaluation flow.
type EvaluationError struct {
	QueueID string
	Err     error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("writing evaluation for queue %s failed: %v", e.QueueID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func IsCreation(err error) bool {
	var ce *CreationError
	return errors.As(err, &ce)
}

func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func IsSubmission(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

func IsEvaluation(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}

// IsRetryable reports whether a load failure may be retried by the participant.
// All remote content failures are.
func IsRetryable(err error) bool {
	return IsCreation(err) || IsFetch(err) || IsTimeout(err)
}
