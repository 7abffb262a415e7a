package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor lacks the capability or
	// ownership required for the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable indicates a persistence or transport failure.
	// Callers own the retry policy; nothing in this codebase retries writes.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
