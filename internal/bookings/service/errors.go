package service

import (
	"errors"
	"fmt"
	"net/http"
	bookingserrors "stayhub/internal/bookings/errors"
	apperrors "stayhub/pkg/errors"
	"stayhub/pkg/model"
)

func permissionDenied(message string) *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrPermissionDenied, apperrors.CodePermissionDenied, message, http.StatusForbidden)
}

func propertyUnavailable() *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrPropertyUnavailable, apperrors.CodePropertyUnavailable,
		"Property is not available for booking", http.StatusBadRequest)
}

func invalidDateRange(message string) *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrInvalidDateRange, apperrors.CodeInvalidDateRange, message, http.StatusBadRequest)
}

func capacityExceeded(maxGuests int) *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrCapacityExceeded, apperrors.CodeCapacityExceeded,
		fmt.Sprintf("Property can accommodate maximum %d guests", maxGuests), http.StatusBadRequest).
		WithDetails(map[string]any{"maxGuests": maxGuests})
}

func dateConflict() *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrDateConflict, apperrors.CodeDateConflict,
		"Property is already booked for the selected dates", http.StatusBadRequest)
}

func invalidTransition(from, to model.BookingStatus) *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrInvalidTransition, apperrors.CodeInvalidTransition,
		fmt.Sprintf("Cannot transition booking from %s to %s", from, to), http.StatusBadRequest).
		WithDetails(map[string]any{"from": from, "to": to})
}

func alreadyCanceled() *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrAlreadyCanceled, apperrors.CodeAlreadyCanceled,
		"Booking is already canceled", http.StatusBadRequest)
}

func cannotCancelCompleted() *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrCannotCancelCompleted, apperrors.CodeCannotCancelCompleted,
		"Cannot cancel a completed booking", http.StatusBadRequest)
}

func cancellationWindowClosed(cutoffHours float64) *apperrors.AppError {
	return apperrors.Wrap(bookingserrors.ErrCancellationWindowClosed, apperrors.CodeCancellationWindowClosed,
		fmt.Sprintf("Cannot cancel booking less than %.0f hours before check-in", cutoffHours), http.StatusBadRequest)
}

func bookingNotFound(id string) *apperrors.AppError {
	appErr := apperrors.NotFoundWithID("Booking", id)
	appErr.Err = bookingserrors.ErrNotFound
	return appErr
}

func propertyNotFound(id string) *apperrors.AppError {
	appErr := apperrors.NotFoundWithID("Property", id)
	appErr.Err = bookingserrors.ErrPropertyNotFound
	return appErr
}

// storageError hides driver text from the message; the cause stays reachable
// through errors.Is for both ErrStorage and the original error.
func storageError(message string, err error) *apperrors.AppError {
	return apperrors.Storage(message, errors.Join(bookingserrors.ErrStorage, err))
}
