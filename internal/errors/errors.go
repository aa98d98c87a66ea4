package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session guard
var (
	// Session errors
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrRefreshFailed          = errors.New("token refresh failed")
	ErrNoRefreshPath          = errors.New("no refresh token or stored credentials")
	ErrReplayFailed           = errors.New("request replay after refresh failed")
	ErrRequestFailed          = errors.New("request failed")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// User errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("forbidden")

	// General errors
	ErrNotFound = errors.New("not found")
)

// RefreshError reports that neither the refresh-token exchange nor the
// password fallback produced a new access token. Either cause may be nil when
// that path was not available.
type RefreshError struct {
	RefreshErr error
	LoginErr   error
}

func (e *RefreshError) Error() string {
	switch {
	case e.RefreshErr == nil && e.LoginErr == nil:
		return ErrRefreshFailed.Error() + ": " + ErrNoRefreshPath.Error()
	case e.LoginErr == nil:
		return fmt.Sprintf("%s: refresh: %v", ErrRefreshFailed, e.RefreshErr)
	case e.RefreshErr == nil:
		return fmt.Sprintf("%s: password login: %v", ErrRefreshFailed, e.LoginErr)
	}
	return fmt.Sprintf("%s: refresh: %v; password login: %v", ErrRefreshFailed, e.RefreshErr, e.LoginErr)
}

func (e *RefreshError) Unwrap() []error {
	errs := []error{ErrRefreshFailed}
	if e.RefreshErr == nil && e.LoginErr == nil {
		errs = append(errs, ErrNoRefreshPath)
	}
	if e.RefreshErr != nil {
		errs = append(errs, e.RefreshErr)
	}
	if e.LoginErr != nil {
		errs = append(errs, e.LoginErr)
	}
	return errs
}

// RequestFailedError carries a non-2xx backend response that the guard does not handle itself.
type RequestFailedError struct {
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s (status %d)", ErrRequestFailed, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", ErrRequestFailed, e.StatusCode, e.Body)
}

func (e *RequestFailedError) Unwrap() error {
	return ErrRequestFailed
}

// ReplayFailedError is returned when the single replay after a forced refresh was rejected as well.
type ReplayFailedError struct {
	StatusCode int
	Body       string
}

func (e *ReplayFailedError) Error() string {
	return fmt.Sprintf("%s (status %d)", ErrReplayFailed, e.StatusCode)
}

func (e *ReplayFailedError) Unwrap() error {
	return ErrReplayFailed
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, so callers importing this package need not import both.
func New(text string) error {
	return errors.New(text)
}
