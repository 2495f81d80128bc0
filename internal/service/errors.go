package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a rejected input. Match with errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when registering an email already in the directory.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for any failed login, whether or not the email exists.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoSession is returned by workspace operations when nobody is logged in.
	ErrNoSession = errors.New("no active session")
	// ErrNoLookup is returned by SearchRepository when the workspace has no lookup.
	ErrNoLookup = errors.New("repository lookup is not configured")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
