// Package common defines shared constants and sentinel errors used across
// xtouch server layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
	ErrorStorage  = errors.New("storage error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorThrottled    = errors.New("too many requests")

	// Validation / upload errors.
	ErrorValidation     = errors.New("validation error")
	ErrUnsupportedImage = errors.New("unsupported image")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// StorageError wraps an I/O failure of the backing store or the blob store.
// Op names the failed operation, e.g. "profiles.create" or "blob.put".
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrorStorage }

// UniqueViolationError is returned by repositories when an insert or update
// hits a unique index. Constraint carries the index name so callers can tell
// a slug collision from a duplicate owner.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Constraint)
}

func (e *UniqueViolationError) Unwrap() error { return e.Err }

func (e *UniqueViolationError) Is(target error) bool { return target == ErrorConflict }
