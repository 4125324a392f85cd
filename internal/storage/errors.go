package storage

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when creating an object at an occupied key
	// with overwrite disabled.
	ErrKeyExists = errors.New("object already exists at this key")

	// ErrInvalidKey is returned for empty keys or path traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrTooLarge is returned when an object exceeds the configured size limit.
	ErrTooLarge = errors.New("object exceeds maximum size")

	// ErrAccessDenied is returned when the storage provider denies access.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Structured Error Type
// =============================================================================

// StorageError wraps storage operation errors with the operation and key.
// It supports errors.Unwrap for sentinel checks with errors.Is().
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Helper Functions
// =============================================================================

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsKeyExists returns true if the error indicates a key already exists.
func IsKeyExists(err error) bool {
	return errors.Is(err, ErrKeyExists)
}

// IsTooLarge returns true if the error indicates an object was too large.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}
