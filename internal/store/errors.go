package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates username or email uniqueness.
var ErrConflict = errors.New("conflict")
