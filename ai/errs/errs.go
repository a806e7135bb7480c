// Package errs defines the failure taxonomy of the orchestration core.
//
// Provider and resolution failures are absorbed at the handler boundary,
// configuration failures disable a single capability, and only invalid
// caller input is ever returned from the public entry points.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the category of a failure.
type Kind int

const (
	// KindUnknown is any error that was not classified.
	KindUnknown Kind = iota
	// KindProvider is an outbound collaborator call failure (timeout, auth, quota, transport).
	KindProvider
	// KindResolution is an extraction or classification that returned unusable output.
	KindResolution
	// KindNotFound is a lookup that did not clear the similarity threshold.
	KindNotFound
	// KindConfiguration is a missing credential or collaborator.
	KindConfiguration
	// KindInvalidInput is malformed caller input.
	KindInvalidInput
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindResolution:
		return "resolution"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyUtterance = &Error{Kind: KindInvalidInput, Op: "turn", Err: errors.New("utterance is empty")}
	ErrMissingUserID  = &Error{Kind: KindInvalidInput, Op: "turn", Err: errors.New("user id is required")}
)

// Error wraps an underlying error with its kind and the failing operation.
type Error struct {
	Err   error
	Op    string
	Kind  Kind
	Quota bool // provider rejected the call for quota/rate reasons
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the original error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Provider wraps an outbound call failure.
func Provider(op string, err error) error {
	return &Error{Kind: KindProvider, Op: op, Err: err}
}

// ProviderQuota wraps an outbound call rejected for quota reasons.
func ProviderQuota(op string, err error) error {
	return &Error{Kind: KindProvider, Op: op, Err: err, Quota: true}
}

// Resolution reports unusable model output.
func Resolution(op string, format string, args ...any) error {
	return &Error{Kind: KindResolution, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a failed lookup of what.
func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("no match for %q", what)}
}

// Configuration reports a missing capability.
func Configuration(op, what string) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf("%s is not configured", what)}
}

// KindOf returns the kind of the first *Error in err's chain.
// Context cancellation and network errors count as provider failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProvider
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindProvider
	}
	return KindUnknown
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsQuotaExceeded reports whether err is a provider quota rejection.
func IsQuotaExceeded(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindProvider && e.Quota
}
