// Package apperr defines the error taxonomy shared by every pipeline
// component. Each failure carries a Kind that handlers map onto a transport
// status; the underlying cause is preserved for logs via Unwrap.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindValidation
	KindNotFound
	KindPermissionDenied
	KindUpstream
	KindEmptyDocument
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUpstream:
		return "upstream_service_error"
	case KindEmptyDocument:
		return "empty_document"
	case KindParse:
		return "parse_error"
	default:
		return "internal_error"
	}
}

type Error struct {
	Kind  Kind
	Field string // offending field for validation errors
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Kind so callers can compare against sentinel constructors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// MissingField builds the validation error every operation uses for a
// required field that is absent or malformed.
func MissingField(field string) *Error {
	return &Error{
		Kind:  KindValidation,
		Field: field,
		Msg:   fmt.Sprintf("missing required field: %s", field),
	}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for errors
// raised outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
