package domain

import "errors"

var (
	// ErrNotFound is returned when a story record does not exist.
	ErrNotFound = errors.New("story not found")

	// ErrDuplicate is returned on insert when another non-rejected record
	// already holds the same fingerprint or source URL.
	ErrDuplicate = errors.New("duplicate story")

	// ErrConflict is returned when a conditional status update matched no
	// row, i.e. a concurrent actor already moved the record on.
	ErrConflict = errors.New("status conflict")
)
