package session

import "errors"

var (
	// ErrNotFound is returned when no active output exists for a key.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidKey is returned when a user or reactor identifier is empty.
	ErrInvalidKey = errors.New("user and reactor identifiers are required")
	// ErrCapacity is returned when a new session would exceed the configured limit.
	ErrCapacity = errors.New("session capacity reached")
)
