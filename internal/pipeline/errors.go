package pipeline

import (
	"errors"
	"fmt"
	"net"
)

// Kind categorizes a pipeline error for retry classification.
type Kind int

// Error kinds shared by the fetch and AI collaborators.
const (
	KindOther Kind = iota
	KindTimeout
	KindConnection
	KindThrottled
	KindServiceUnavailable
	KindInternal
	KindCredentialExpired
	KindCredentialInvalid
	KindHTTPStatus
	KindBadResponse
)

// String returns a stable label for logging.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindThrottled:
		return "throttled"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInternal:
		return "internal"
	case KindCredentialExpired:
		return "credential_expired"
	case KindCredentialInvalid:
		return "credential_invalid"
	case KindHTTPStatus:
		return "http_status"
	case KindBadResponse:
		return "bad_response"
	default:
		return "other"
	}
}

// Error is a typed failure produced by an external collaborator.
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP status when Kind is KindHTTPStatus
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: http status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed pipeline error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewHTTPError builds a typed error for a non-success HTTP status.
func NewHTTPError(op string, status int) *Error {
	return &Error{Kind: KindHTTPStatus, Op: op, Status: status}
}

// KindOf extracts the Kind of an error, inferring one for plain
// network errors. Unrecognized errors report KindOther.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	return KindOther
}

// retryableHTTPStatus is the fixed allow-list of retryable status codes.
func retryableHTTPStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// RetryableHTTP classifies fetch errors: timeouts, connection failures
// and throttling/server statuses are retryable; every other failure is
// permanent for the current pass.
func RetryableHTTP(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindConnection, KindThrottled, KindServiceUnavailable, KindInternal:
		return true
	case KindHTTPStatus:
		var pe *Error
		if errors.As(err, &pe) {
			return retryableHTTPStatus(pe.Status)
		}
	}
	return false
}

// RetryableService classifies AI-service errors. Credential errors are
// retryable because the ambient credential provider refreshes tokens
// between attempts; malformed responses are not.
func RetryableService(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindConnection, KindThrottled, KindServiceUnavailable,
		KindInternal, KindCredentialExpired, KindCredentialInvalid:
		return true
	}
	return false
}
