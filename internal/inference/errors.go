package inference

import (
	"errors"
	"fmt"
)

// BackendUnavailableError is raised when every retry attempt against the
// inference proxy has failed. It carries the last underlying error for
// diagnostics.
type BackendUnavailableError struct {
	Attempts int
	Err      error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("inference backend unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// IsBackendUnavailable reports whether err is an exhausted-retries failure.
func IsBackendUnavailable(err error) bool {
	var target *BackendUnavailableError
	return errors.As(err, &target)
}

// statusError marks a non-2xx proxy answer so the retry loop can decide
// whether the status is transient.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("proxy status %d", e.code)
	}
	return fmt.Sprintf("proxy status %d: %s", e.code, e.body)
}

// retryableStatuses is the fixed set of transient HTTP codes.
var retryableStatuses = map[int]struct{}{
	429: {},
	502: {},
	503: {},
	504: {},
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		_, ok := retryableStatuses[se.code]
		return ok
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks an outright connection failure.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("proxy transport error: %v", e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}
