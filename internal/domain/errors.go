package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrPermissionDenied  = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflicting update")
	ErrStorage           = errors.New("transient failure")
)

// DenyReason is surfaced verbatim to callers of a denied action.
type DenyReason string

const (
	ReasonNoRoleAssigned   DenyReason = "NoRoleAssigned"
	ReasonInsufficientRole DenyReason = "InsufficientRole"
	ReasonNotOwner         DenyReason = "NotOwner"
)

type PermissionDeniedError struct {
	Reason DenyReason
}

func Deny(reason DenyReason) *PermissionDeniedError {
	return &PermissionDeniedError{Reason: reason}
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPermissionDenied, e.Reason)
}

func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

type ValidationError struct {
	Field   string
	Message string
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidTransitionError carries the statuses legally reachable from From.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func NewInvalidTransition(from, to Status) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to, Allowed: from.NextStatuses()}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// StorageError wraps any failure of the underlying store, timeouts included.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }
