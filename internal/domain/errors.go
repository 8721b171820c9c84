package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can pick a response without looking
// at the message.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindAttemptsExceeded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindAttemptsExceeded:
		return "attempts_exceeded"
	default:
		return "internal"
	}
}

// Error is a typed failure carrying a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Auth errors
var (
	ErrInvalidToken       = &Error{Kind: KindUnauthenticated, Message: "invalid token"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "Invalid or expired token"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Message: "Invalid credentials"}
	ErrInvalidRefresh     = &Error{Kind: KindUnauthenticated, Message: "Invalid or expired refresh token"}
	ErrInvalidOTP         = &Error{Kind: KindUnauthenticated, Message: "Invalid or expired OTP code"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "Forbidden"}
	ErrRoleRequired       = &Error{Kind: KindForbidden, Message: "Please select a role to continue"}
)

// OTP errors
var (
	ErrRateLimited      = &Error{Kind: KindRateLimited, Message: "Too many OTP requests. Please try again in an hour."}
	ErrAttemptsExceeded = &Error{Kind: KindAttemptsExceeded, Message: "Maximum verification attempts exceeded. Please request a new OTP."}
)

// Identity errors
var (
	ErrIdentityTaken = &Error{Kind: KindConflict, Message: "Email or phone already in use"}
	ErrUserNotFound  = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
)

// Validation returns a caller-fault error with the given message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Internal wraps a collaborator failure.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf resolves the kind of err. Untyped errors are internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage is the message safe to show a caller.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal {
		return de.Message
	}
	return "Internal server error"
}
