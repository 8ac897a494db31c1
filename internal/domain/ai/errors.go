package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the provider returned a quota/limit error
// (HTTP 429 or similar). Never retried.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrInvalidRequest indicates the provider rejected the request itself.
// Never retried.
var ErrInvalidRequest = errors.New("ai invalid request")

// TransientError wraps failures worth retrying: network errors, server 5xx,
// and response shapes that may be temporary (e.g. a non-JSON body).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsRetryable reports whether the retry loop should try again after err.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	return true
}
