package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeNotPlainAction indicates a value without an action type reached
	// the reducer. Usually a function was dispatched without the thunk
	// middleware installed.
	ErrCodeNotPlainAction ErrorCode = "NOT_PLAIN_ACTION"

	// ErrCodeMissingType indicates an Action whose ActionType is empty.
	ErrCodeMissingType ErrorCode = "MISSING_TYPE"

	// ErrCodeReducerDispatch indicates a reducer tried to dispatch.
	ErrCodeReducerDispatch ErrorCode = "REDUCER_DISPATCH"

	// ErrCodeDispatchDuringConstruction indicates a middleware dispatched
	// while the chain was still being built.
	ErrCodeDispatchDuringConstruction ErrorCode = "DISPATCH_DURING_CONSTRUCTION"
)

// Error is returned by the store's own dispatch path.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ActionType is the type of the offending action, when it has one.
	ActionType string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ActionType != "" {
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.ActionType)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotPlainAction reports whether err is a NOT_PLAIN_ACTION store error.
func IsNotPlainAction(err error) bool {
	return hasCode(err, ErrCodeNotPlainAction)
}

// IsMissingType reports whether err is a MISSING_TYPE store error.
func IsMissingType(err error) bool {
	return hasCode(err, ErrCodeMissingType)
}

// IsReducerDispatch reports whether err is a REDUCER_DISPATCH store error.
func IsReducerDispatch(err error) bool {
	return hasCode(err, ErrCodeReducerDispatch)
}

// IsDispatchDuringConstruction reports whether err is a
// DISPATCH_DURING_CONSTRUCTION store error.
func IsDispatchDuringConstruction(err error) bool {
	return hasCode(err, ErrCodeDispatchDuringConstruction)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func newNotPlainError(action any) *Error {
	return &Error{
		Code: ErrCodeNotPlainAction,
		Message: fmt.Sprintf(
			"actions must implement store.Action, got %T; dispatching other values needs a middleware that consumes them",
			action,
		),
	}
}
