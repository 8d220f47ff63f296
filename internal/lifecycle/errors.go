package lifecycle

import (
	"errors"
	"fmt"
)

// Error codes for business-rule violations. Handlers map these to HTTP
// statuses; callers match with CodeOf instead of string comparison.
const (
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeIncompleteEvaluation = "INCOMPLETE_EVALUATION"
	CodeNoQualifiedBidders   = "NO_QUALIFIED_BIDDERS"
	CodePartialCancellation  = "PARTIAL_CANCELLATION"
	CodeLedgerInconsistency  = "LEDGER_INCONSISTENCY"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
)

// Error is a typed business-rule violation. The message is written for the
// operator: it names the precondition that failed in plain terms.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates a typed error with the given code.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error that carries an underlying cause.
func WrapError(code string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// NewInvalidTransition reports a state change rejected by the transition
// table, naming the current state and the requested event.
func NewInvalidTransition(current TenderStatus, event string) *Error {
	return NewError(CodeInvalidTransition, "cannot %s while the work item is in state %s", event, current)
}

// NewNotFound reports a missing entity.
func NewNotFound(entity string, id any) *Error {
	return NewError(CodeNotFound, "%s %v not found", entity, id)
}

// NewConflict reports a data-integrity conflict such as a duplicate memo
// number or a second award on the same work item.
func NewConflict(format string, args ...any) *Error {
	return NewError(CodeConflict, format, args...)
}

// CodeOf extracts the business-rule code from an error chain; empty string
// for untyped errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given business-rule code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
