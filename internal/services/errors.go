package services

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal error")
)

// Error is returned by every service operation. Message is safe to show to
// callers; Err is the underlying cause and is only logged.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func validation(message string) *Error {
	return newError(ErrValidation, message, nil)
}

func internal(cause error) *Error {
	return newError(ErrInternal, "something went wrong", cause)
}

// KindOf returns the kind of err, or ErrInternal for errors that did not
// come from a service.
func KindOf(err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Kind != nil {
		return svcErr.Kind
	}
	return ErrInternal
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Kind != ErrInternal {
		return svcErr.Message
	}
	return "something went wrong"
}
