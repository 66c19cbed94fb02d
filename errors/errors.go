package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// PlatformError is an error carrying a stable code, a human readable message,
// structured context and a retry classification.
type PlatformError interface {
	error

	// Code returns the error code.
	Code() ErrorCode

	// Message returns the message without the cause chain.
	Message() string

	// Context returns a copy of the structured context attached to the error.
	Context() map[string]interface{}

	// Retryable reports whether the operation that produced the error may
	// succeed if attempted again.
	Retryable() bool

	// Unwrap returns the underlying cause, if any.
	Unwrap() error
}

type platformError struct {
	code      ErrorCode
	message   string
	context   map[string]interface{}
	cause     error
	retryable bool
	sentinel  bool
}

// Sentinel errors for errors.Is checks. A PlatformError matches a sentinel
// when both carry the same code.
var (
	ErrNotFound          = sentinel(CodeNotFound, "not found")
	ErrForbidden         = sentinel(CodeForbidden, "access denied")
	ErrCapacity          = sentinel(CodeCapacity, "capacity exceeded")
	ErrInvalidInput      = sentinel(CodeInvalidInput, "invalid input")
	ErrUnsupportedScheme = sentinel(CodeUnsupportedScheme, "unsupported scheme")
	ErrChecksumMismatch  = sentinel(CodeChecksumMismatch, "checksum mismatch")
	ErrTransferExhausted = sentinel(CodeTransferExhausted, "transfer attempts exhausted")
	ErrCanceled          = sentinel(CodeCanceled, "canceled")
	ErrSessionClosed     = sentinel(CodeSessionClosed, "session closed")
)

func sentinel(code ErrorCode, msg string) error {
	return &platformError{code: code, message: msg, sentinel: true}
}

// New creates a PlatformError with the given code and message.
func New(code ErrorCode, message string) error {
	return &platformError{
		code:      code,
		message:   message,
		retryable: retryableByDefault(code),
	}
}

// NewWithContext creates a PlatformError with structured context.
func NewWithContext(code ErrorCode, message string, ctx map[string]interface{}) error {
	return &platformError{
		code:      code,
		message:   message,
		context:   copyContext(ctx),
		retryable: retryableByDefault(code),
	}
}

// Newf creates a PlatformError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a code and message. It returns nil if err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	return WrapWithContext(err, code, message, nil)
}

// Wrapf wraps err with a code and formatted message. It returns nil if err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	return WrapWithContext(err, code, fmt.Sprintf(format, args...), nil)
}

// WrapWithContext wraps err with a code, message and structured context.
// It returns nil if err is nil.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &platformError{
		code:      code,
		message:   message,
		context:   copyContext(ctx),
		cause:     err,
		retryable: retryableByDefault(code),
	}
}

// AsTransient returns err marked as retryable. Backends use it for failures
// whose code is normally permanent but which they know to be temporary, such
// as an access check against credentials that are still propagating.
func AsTransient(err error) error {
	return withRetryable(err, true)
}

// AsPermanent returns err marked as not retryable.
func AsPermanent(err error) error {
	return withRetryable(err, false)
}

func withRetryable(err error, retryable bool) error {
	if err == nil {
		return nil
	}
	var pe *platformError
	if As(err, &pe) && pe == err {
		cp := *pe
		cp.retryable = retryable
		cp.sentinel = false
		return &cp
	}
	code := GetCode(err)
	if code == "" {
		code = CodeUnknown
	}
	return &platformError{
		code:      code,
		message:   "",
		cause:     err,
		retryable: retryable,
	}
}

// GetCode returns the code of the outermost PlatformError in err's chain, or
// an empty code if there is none.
func GetCode(err error) ErrorCode {
	var pe PlatformError
	if As(err, &pe) {
		return pe.Code()
	}
	return ""
}

// IsRetryable reports whether err is classified as transient. The outermost
// PlatformError in the chain decides; errors without one are not retryable.
func IsRetryable(err error) bool {
	var pe PlatformError
	if As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// HasCode reports whether any PlatformError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if pe, ok := err.(PlatformError); ok && pe.Code() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

func (e *platformError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.code))
	if e.message != "" {
		b.WriteString(": ")
		b.WriteString(e.message)
	}
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.context[k])
		}
		b.WriteString("]")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *platformError) Code() ErrorCode { return e.code }

func (e *platformError) Message() string { return e.message }

func (e *platformError) Context() map[string]interface{} { return copyContext(e.context) }

func (e *platformError) Retryable() bool { return e.retryable }

func (e *platformError) Unwrap() error { return e.cause }

// Is matches sentinel errors by code.
func (e *platformError) Is(target error) bool {
	t, ok := target.(*platformError)
	if !ok || !t.sentinel {
		return false
	}
	return t.code == e.code
}

func copyContext(ctx map[string]interface{}) map[string]interface{} {
	if len(ctx) == 0 {
		return nil
	}
	cp := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		cp[k] = v
	}
	return cp
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }
