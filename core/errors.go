package core

import "github.com/pkg/errors"

// ErrorKind classifies domain errors so the transport layer can map them without inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindInvalidCode
	KindCodeExpired
	KindAttendanceClosed
	KindNotEnrolled
	KindConflict
	KindExhaustedRetries
)

var kindNames = map[ErrorKind]string{
	KindUnknown:          "unknown",
	KindValidation:       "validation",
	KindNotFound:         "not_found",
	KindForbidden:        "forbidden",
	KindInvalidCode:      "invalid_code",
	KindCodeExpired:      "code_expired",
	KindAttendanceClosed: "attendance_closed",
	KindNotEnrolled:      "not_enrolled",
	KindConflict:         "conflict",
	KindExhaustedRetries: "exhausted_retries",
}

func (k ErrorKind) String() string {
	return kindNames[k]
}

// Error is a domain error: a stable kind plus a human message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func (e Error) Error() string {
	return e.Message
}

// KindOf returns the kind of the domain error at the root of err (KindUnknown otherwise).
func KindOf(err error) ErrorKind {
	switch e := errors.Cause(err).(type) {
	case *Error:
		return e.Kind
	case *ValidationError:
		return KindValidation
	}
	return KindUnknown
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
