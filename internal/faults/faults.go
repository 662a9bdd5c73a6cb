// Package faults defines the failure kinds shared by every pipeline stage and
// the user-legible message for each of them.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a stage failure
type Kind int

const (
	InternalFailure Kind = iota // Unexpected failure caught at the pipeline boundary
	DeviceUnavailable
	Unauthorized
	NetworkFailure
	Timeout
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device_unavailable"
	case Unauthorized:
		return "unauthorized"
	case NetworkFailure:
		return "network_failure"
	case Timeout:
		return "timeout"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "internal_failure"
	}
}

// Error is a classified failure of one operation.
type Error struct {
	Kind Kind
	Op   string // e.g. "asr.whisper", "chat.external", "capture"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err as a failure of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a failure from a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err. Unclassified errors are InternalFailure.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return InternalFailure
}

// IsClassified reports whether err carries a failure kind
func IsClassified(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// Is reports whether err is a failure of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// Classify converts a transport error from an outgoing call into a failure.
// Already classified errors are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(Timeout, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return New(Timeout, op, err)
	}

	return New(NetworkFailure, op, err)
}

// FromStatus classifies a non-2xx HTTP status returned by a collaborator.
func FromStatus(op string, status int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}

	switch {
	case status == 401 || status == 403:
		return Newf(Unauthorized, op, "status %d: %s", status, body)
	case status == 408 || status == 504:
		return Newf(Timeout, op, "status %d: %s", status, body)
	default:
		return Newf(NetworkFailure, op, "status %d: %s", status, body)
	}
}

// Retryable reports whether another attempt of the same call may succeed.
// Only network failures qualify; timeouts already spent the call budget.
func Retryable(err error) bool {
	return Is(err, NetworkFailure)
}
