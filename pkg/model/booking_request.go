package model

// MaxNoteLength bounds specialRequests and cancellationReason.
const MaxNoteLength = 500

type CreateBookingRequest struct {
	PropertyID      string `json:"propertyId" validate:"required,mongodb"`
	CheckInDate     string `json:"checkInDate" validate:"required,booking_date"`
	CheckOutDate    string `json:"checkOutDate" validate:"required,booking_date"`
	NumberOfGuests  int    `json:"numberOfGuests" validate:"required,min=1"`
	SpecialRequests string `json:"specialRequests,omitempty" validate:"omitempty,max=500"`
}

type UpdateBookingStatusRequest struct {
	Status             string `json:"status" validate:"required,oneof=pending confirmed canceled completed"`
	CancellationReason string `json:"cancellationReason,omitempty" validate:"omitempty,max=500"`
}

type CancelBookingRequest struct {
	CancellationReason string `json:"cancellationReason,omitempty" validate:"omitempty,max=500"`
}
