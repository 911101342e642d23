package elevenlabs

import (
	"errors"
	"fmt"
)

// TransientError covers provider responses worth retrying: rate limits,
// gateway errors, anything 5xx.
type TransientError struct {
	Status int
	Body   string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("elevenlabs transient error: %d - %s", e.Status, e.Body)
}

// RejectedError means the provider received the request and refused it.
// Retrying the same payload will not help.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("elevenlabs rejected request: %d - %s", e.Status, e.Body)
}

// AmbiguousTimeoutError means no response was received at all. The provider
// may have completed the clone upstream, so callers must not treat this as a
// definite failure or resubmit the same sample.
type AmbiguousTimeoutError struct {
	Err error
}

func (e *AmbiguousTimeoutError) Error() string {
	return fmt.Sprintf("elevenlabs request timed out without a response: %v", e.Err)
}

func (e *AmbiguousTimeoutError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

func IsAmbiguousTimeout(err error) bool {
	var ae *AmbiguousTimeoutError
	return errors.As(err, &ae)
}
