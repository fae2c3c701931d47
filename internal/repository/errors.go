package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is not visible
	// to the requesting owner. Implementations must not distinguish the two.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user insert violates email uniqueness.
	ErrDuplicateEmail = errors.New("email already registered")
)
