package domain

import "fmt"

// ErrorKind is the closed set of failure categories the service can return.
// Transport layers map each kind to a stable status code.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindPreconditionFailed ErrorKind = "precondition_failed"
	KindConflict           ErrorKind = "conflict"
	KindValidationFailed   ErrorKind = "validation_failed"
	KindStorage            ErrorKind = "storage_error"
)

// FieldError names a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a tagged-variant error carrying a kind, a message, and optional
// per-field details.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NotFound reports a missing resource by name and id.
func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// PreconditionFailed reports a request that is well-formed but not allowed in
// the current state.
func PreconditionFailed(message string) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: message}
}

// Conflict reports a uniqueness clash.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// ValidationFailed reports malformed input, optionally with field details.
func ValidationFailed(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidationFailed, Message: message, Fields: fields}
}

// StorageError wraps a collaborator failure. The cause is preserved for
// errors.Is/As but never retried by the core.
func StorageError(op string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf("storage: %s: %v", op, cause), cause: cause}
}

// KindOf extracts the kind from err, or KindStorage for unclassified errors.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindStorage
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
