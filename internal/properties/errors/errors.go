package errors

import "errors"

var (
	// ErrNotFound is returned when a property is not found by ID
	ErrNotFound = errors.New("property not found")

	// ErrInvalidID is returned when an ID format is invalid
	ErrInvalidID = errors.New("invalid property ID format")
)
