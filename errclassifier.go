// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"fmt"

	"github.com/bassosimone/errclass"
)

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ECONNRESET") that facilitate systematic analysis of reactor diagnostics.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	op.ErrClassifier = ErrClassifierFunc(errclass.New)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies errors using the platform errno tables in
// the upstream [errclass] package.
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)

// ErrKind is the internal error taxonomy described in the error handling
// design: every broker- or cluster-level failure is tagged with exactly one
// kind so that callers can branch on [errors.Is] without parsing strings.
type ErrKind int

const (
	// ErrKindStart: bind/listen/socket creation failed before any broker existed.
	ErrKindStart ErrKind = iota + 1
	// ErrKindAccept: kernel refused or per-socket accept tuning failed; the
	// candidate broker is never published.
	ErrKindAccept
	// ErrKindConnect: outbound connect syscall failed or timed out.
	ErrKindConnect
	// ErrKindTimeout: read, write, idle or connect watchdog fired.
	ErrKindTimeout
	// ErrKindProtocol: negotiated protocol (ALPN) could not be activated.
	ErrKindProtocol
	// ErrKindFraming: CMP magic mismatch, out-of-order fragment, or oversize payload.
	ErrKindFraming
	// ErrKindOsBroken: unsupported OS primitive (e.g. cluster on Windows).
	ErrKindOsBroken
)

// String returns a short label for the kind, used as the errClass value in
// structured logs when no more specific [ErrClassifier] is configured.
func (k ErrKind) String() string {
	switch k {
	case ErrKindStart:
		return "StartError"
	case ErrKindAccept:
		return "AcceptError"
	case ErrKindConnect:
		return "ConnectError"
	case ErrKindTimeout:
		return "TimeoutError"
	case ErrKindProtocol:
		return "ProtocolError"
	case ErrKindFraming:
		return "FramingError"
	case ErrKindOsBroken:
		return "OsBroken"
	default:
		return "UnknownError"
	}
}

// KindError wraps an underlying error with an [ErrKind] tag.
//
// Use [errors.As] to recover the kind from an error returned by the reactor,
// and [errors.Is] against a sentinel value constructed with the same kind
// and a nil Err to test only the category.
type KindError struct {
	Kind ErrKind
	Err  error
}

// NewKindError wraps err with kind. A nil err is valid and is used as a
// sentinel for [errors.Is] comparisons scoped to one [ErrKind].
func NewKindError(kind ErrKind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap supports [errors.Is]/[errors.As] traversal to the underlying error.
func (e *KindError) Unwrap() error {
	return e.Err
}

// Is implements [errors.Is] support so that errors.Is(err, NewKindError(ErrKindTimeout, nil))
// matches any KindError carrying the same kind, regardless of the wrapped error.
func (e *KindError) Is(target error) bool {
	other, ok := target.(*KindError)
	if !ok {
		return false
	}
	if other.Err != nil {
		return false
	}
	return other.Kind == e.Kind
}
