package adaptics

import "fmt"

// Error is the engine's error type: an optional human context message
// wrapped around an optional underlying cause, so callers along the
// composition root can add context without losing the original error.
type Error struct {
	context string
	wrapped error
}

// NewError builds an Error carrying only a context message.
func NewError(context string) *Error {
	return &Error{context: context}
}

// WrapError builds an Error wrapping cause with no additional context.
func WrapError(cause error) *Error {
	return &Error{wrapped: cause}
}

// WrapErrorf builds an Error wrapping cause with a formatted context
// message.
func WrapErrorf(cause error, format string, args ...any) *Error {
	return &Error{context: fmt.Sprintf(format, args...), wrapped: cause}
}

func (e *Error) Error() string {
	switch {
	case e.wrapped != nil && e.context != "":
		return fmt.Sprintf("%s: %v", e.context, e.wrapped)
	case e.wrapped != nil:
		return e.wrapped.Error()
	case e.context != "":
		return e.context
	default:
		return "<unknown error>"
	}
}

func (e *Error) Unwrap() error { return e.wrapped }
