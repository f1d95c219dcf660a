package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Error kinds returned by the services.
var (
	ErrValidation       = errors.New("validation failed")
	ErrUserNotFound     = errors.New("user not found")
	ErrCreateUserFailed = errors.New("failed to create user")
	ErrUpstream         = errors.New("upstream failure")
)

// ValidationError describes a rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthError is a login failure carrying the HTTP status to report.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth error %d: %s", e.Code, e.Message) }

// SwallowedError marks a best-effort side effect whose failure was logged and
// discarded without changing the caller's outcome.
type SwallowedError struct {
	Op  string
	Err error
}

func (e *SwallowedError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *SwallowedError) Unwrap() error { return e.Err }

// swallow logs err as a best-effort failure and returns the wrapped value.
func swallow(logger *zap.Logger, op string, err error, fields ...zap.Field) *SwallowedError {
	se := &SwallowedError{Op: op, Err: err}
	logger.Warn("Best-effort operation failed", append(fields, zap.String("op", op), zap.Error(se))...)
	return se
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}
