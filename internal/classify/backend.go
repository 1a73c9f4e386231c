package classify

import (
	"context"
	"errors"
	"fmt"
)

// Backend is the classification backend contract: one blocking text
// completion given a system instruction. Transport and model behavior are
// the implementation's concern; the engine only sees text in, text out.
type Backend interface {
	Send(ctx context.Context, text, systemInstruction string) (string, error)
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, text, systemInstruction string) (string, error)

func (f BackendFunc) Send(ctx context.Context, text, systemInstruction string) (string, error) {
	return f(ctx, text, systemInstruction)
}

// BackendError wraps a failed backend call (transport failure, non-2xx
// status, unusable response shape).
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("classification backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err (or any error in its chain) is a
// BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// ParseError indicates the backend reply could not be interpreted:
// malformed JSON, a missing required key, or a non-integer type id.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing backend reply: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing backend reply: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err (or any error in its chain) is a
// ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// UnexpectedTypeError indicates the backend returned a type id outside the
// valid range 0..Count. Out-of-range ids are errors, never matches.
type UnexpectedTypeError struct {
	TypeID int
	Count  int
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("unexpected type id %d (valid range 0..%d)", e.TypeID, e.Count)
}

// IsUnexpectedTypeError reports whether err (or any error in its chain) is
// an UnexpectedTypeError.
func IsUnexpectedTypeError(err error) bool {
	var ue *UnexpectedTypeError
	return errors.As(err, &ue)
}
