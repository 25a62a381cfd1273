package service

import "errors"

var (
	// ErrNotFound means the resource does not exist or belongs to another
	// tenant; callers cannot tell which.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the resource is not in a status that allows the
	// requested transition.
	ErrInvalidState = errors.New("invalid state for operation")
)
