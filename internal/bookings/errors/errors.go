package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrPropertyNotFound = errors.New("property not found")

	ErrPermissionDenied = errors.New("permission denied")

	ErrPropertyUnavailable = errors.New("property is not available for booking")

	ErrInvalidDateRange = errors.New("invalid booking date range")

	ErrCapacityExceeded = errors.New("number of guests exceeds property capacity")

	ErrDateConflict = errors.New("property is already booked for the selected dates")

	ErrInvalidTransition = errors.New("invalid booking status transition")

	ErrAlreadyCanceled = errors.New("booking is already canceled")

	ErrCannotCancelCompleted = errors.New("cannot cancel a completed booking")

	ErrCancellationWindowClosed = errors.New("cancellation window has closed")

	ErrStorage = errors.New("booking storage failure")
)
