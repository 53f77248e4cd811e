package workflow

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a provisioning failure visible to the caller.
type Kind string

const (
	KindMissingInput             Kind = "MissingInput"
	KindBackendNotReady          Kind = "BackendNotReady"
	KindInsufficientParticipants Kind = "InsufficientParticipants"
	KindGroupCreationFailed      Kind = "GroupCreationFailed"
	KindInternal                 Kind = "InternalError"
)

// Error is returned by Engine.Provision. Message is safe to show to the caller,
// Details carries the underlying cause.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provisioning error, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindInternal
}

func missingInput(field, message string) *Error {
	return &Error{Kind: KindMissingInput, Field: field, Message: message}
}

func backendNotReady() *Error {
	return &Error{
		Kind:    KindBackendNotReady,
		Message: "Messaging backend is not ready, complete pairing first",
	}
}

func insufficientParticipants(n int) *Error {
	return &Error{
		Kind:    KindInsufficientParticipants,
		Message: "A group needs the owner and at least one other participant",
		Details: fmt.Sprintf("%d distinct participant(s)", n),
	}
}

func groupCreationFailed(err error) *Error {
	e := &Error{Kind: KindGroupCreationFailed, Message: "Failed to create group", Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func internalError(details string) *Error {
	return &Error{Kind: KindInternal, Message: "Internal error", Details: details}
}
