package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when the workout editor is asked to touch an exercise that is not there.
	ErrIndexOutOfRange = errors.New("exercise index out of range")
	// ErrTimedOut is returned when a remote store call exceeded its deadline.
	ErrTimedOut = errors.New("remote call timed out")

	ErrInvalidCredentials = &AuthError{Kind: AuthInvalidCredentials}
	ErrUnconfirmedEmail   = &AuthError{Kind: AuthUnconfirmedEmail}
	ErrInvalidToken       = &AuthError{Kind: AuthInvalidToken}
	ErrSessionExpired     = &AuthError{Kind: AuthSessionExpired}
)

type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthUnconfirmedEmail   AuthErrorKind = "email_not_confirmed"
	AuthInvalidToken       AuthErrorKind = "invalid_token"
	AuthSessionExpired     AuthErrorKind = "session_expired"
)

// AuthError is a classified authentication failure. Two AuthErrors match with errors.Is
// when their kinds are equal.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthInvalidCredentials:
		return "invalid email or password"
	case AuthUnconfirmedEmail:
		return "email address has not been confirmed"
	case AuthInvalidToken:
		return "invalid or expired token"
	case AuthSessionExpired:
		return "session has expired"
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// ValidationError is raised before anything reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RemoteError means the store rejected a read or a write. Message is the store's own text.
type RemoteError struct {
	Op       string
	Message  string
	NotFound bool
	Err      error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// PartialWriteError reports a multi-step write that failed after part of it reached the
// store. Op is "save" or "delete"; an empty Op reads as "save". CompensationErr is set
// when undoing the written part failed too.
type PartialWriteError struct {
	Op              string
	WorkoutID       string
	Step            string
	Err             error
	CompensationErr error
}

func (e *PartialWriteError) Error() string {
	op := e.Op
	if op == "" {
		op = "save"
	}
	if e.CompensationErr != nil {
		return fmt.Sprintf("%s workout %s failed at %s: %v (cleanup failed: %v)", op, e.WorkoutID, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("%s workout %s failed at %s: %v", op, e.WorkoutID, e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a remote error for a missing row.
func IsNotFound(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.NotFound
}
