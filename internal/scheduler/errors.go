package scheduler

import "errors"

var (
	// ErrNotFound is returned when a referenced unit or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an operation is illegal for the
	// current status.
	ErrInvalidState = errors.New("invalid state")
)
