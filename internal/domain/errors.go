package domain

import (
	"errors"
	"fmt"
)

// AuthError means no valid session exists and none could be established, or
// the auth provider is unreachable.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError means an entity or collection could not be resolved.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// TransportError means a network or HTTP failure against either store.
type TransportError struct {
	Store string
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Store, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
