package retrieve

import (
	"errors"
	"fmt"
)

// Reason codes for unrecoverable attempt failures. These are stable
// identifiers for deciding whether a failure may be swallowed in favor of a
// fallback identity. Classified server outcomes (unauthorized, max_views,
// expired, not_found) are not errors and never appear here.
const (
	// ReasonDeriveFailed means the share secret could not be expanded into
	// access parameters. Fatal for the whole call, never retried.
	ReasonDeriveFailed = "derive_failed"

	// ReasonNetworkError covers transport failures issuing the request or
	// reading the response.
	ReasonNetworkError = "network_error"

	// ReasonBadStatusBody means the service returned an error status whose
	// body was not a well-formed classified error.
	ReasonBadStatusBody = "bad_status_body"

	// ReasonUnclassifiedReason means the error body carried a reason outside
	// the classified set.
	ReasonUnclassifiedReason = "unclassified_reason"

	// ReasonBadRecord means a success body could not be parsed as a share
	// record.
	ReasonBadRecord = "bad_record"

	// ReasonDecryptFailed means a success body's payload did not decrypt
	// under the derived key.
	ReasonDecryptFailed = "decrypt_failed"
)

// ClassifiedError wraps an unrecoverable failure with a reason code so the
// orchestrator can log and decide without string matching.
type ClassifiedError struct {
	ReasonCode string
	Message    string
	Cause      error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.ReasonCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.ReasonCode, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NewClassifiedError creates a new classified error.
func NewClassifiedError(reasonCode, message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		ReasonCode: reasonCode,
		Message:    message,
		Cause:      cause,
	}
}

// ReasonOf returns the reason code of err, or "" when err carries none.
func ReasonOf(err error) string {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.ReasonCode
	}
	return ""
}
