package service

import "errors"

var (
	// ErrForbidden is returned when the caller's role or assignment does not allow the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned when a ticket is not in a status the action applies to.
	ErrInvalidTransition = errors.New("invalid ticket status transition")
	// ErrValidation wraps invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated is returned when no caller identity is present in the context.
	ErrUnauthenticated = errors.New("caller identity missing")
)
