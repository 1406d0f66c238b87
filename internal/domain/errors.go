package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailTaken is returned by storage when the email is already registered.
	ErrEmailTaken = &ConflictError{Field: "email"}
	// ErrCredentialNotFound is returned by storage when no row matches a lookup.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrInvalidCredentials is the single login failure, whatever the cause.
	ErrInvalidCredentials = &AuthError{Reason: ReasonInvalidCredentials}
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError reports a duplicate value of a unique field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

// StorageError wraps a failure of the storage backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// HashError wraps a failure of the password hashing backend.
type HashError struct {
	Err error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("password hashing: %v", e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// AuthReason tells authentication failures apart for logging. It is never
// shown to clients.
type AuthReason int

const (
	ReasonMissingHeader AuthReason = iota + 1
	ReasonBadScheme
	ReasonMalformed
	ReasonInvalidSignature
	ReasonExpired
	ReasonMalformedSubject
	ReasonInvalidCredentials
)

func (r AuthReason) String() string {
	switch r {
	case ReasonMissingHeader:
		return "missing_header"
	case ReasonBadScheme:
		return "bad_scheme"
	case ReasonMalformed:
		return "malformed"
	case ReasonInvalidSignature:
		return "invalid_signature"
	case ReasonExpired:
		return "expired"
	case ReasonMalformedSubject:
		return "malformed_subject"
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// AuthError is a rejected credential or token.
type AuthError struct {
	Reason AuthReason
	Err    error
}

// NewAuthError builds an AuthError carrying an optional cause.
func NewAuthError(reason AuthReason, cause error) *AuthError {
	return &AuthError{Reason: reason, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "unauthorized: " + e.Reason.String()
	}
	return fmt.Sprintf("unauthorized: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError with the same reason.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Reason == e.Reason
}

// AuthReasonOf returns the reason of the first AuthError in err's chain.
func AuthReasonOf(err error) (AuthReason, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return 0, false
}
