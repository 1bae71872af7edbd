package model

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCanceled  BookingStatus = "canceled"
	BookingStatusCompleted BookingStatus = "completed"
)

// ActiveBookingStatuses block a property's dates from being booked again.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCanceled,
	BookingStatusCompleted,
}

func (s BookingStatus) IsValid() bool {
	for _, known := range AllBookingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Booking struct {
	ID                 string        `json:"id,omitempty" bson:"_id,omitempty"`
	PropertyID         string        `json:"propertyId" bson:"property_id"`
	RenterID           string        `json:"renterId" bson:"renter_id"`
	HostID             string        `json:"hostId" bson:"host_id"`
	CheckInDate        time.Time     `json:"checkInDate" bson:"check_in_date"`
	CheckOutDate       time.Time     `json:"checkOutDate" bson:"check_out_date"`
	NumberOfGuests     int           `json:"numberOfGuests" bson:"number_of_guests"`
	NumberOfNights     int           `json:"numberOfNights" bson:"-"`
	// PreviousStatus is set on the result of a status transition only.
	PreviousStatus     BookingStatus `json:"-" bson:"-"`
	TotalPrice         float64       `json:"totalPrice" bson:"total_price"`
	Status             BookingStatus `json:"status" bson:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus" bson:"payment_status"`
	SpecialRequests    string        `json:"specialRequests,omitempty" bson:"special_requests,omitempty"`
	CancellationReason string        `json:"cancellationReason,omitempty" bson:"cancellation_reason,omitempty"`
	CanceledAt         *time.Time    `json:"canceledAt,omitempty" bson:"canceled_at,omitempty"`
	CanceledBy         string        `json:"canceledBy,omitempty" bson:"canceled_by,omitempty"`
	CreatedAt          time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" bson:"updated_at"`
}

// IsParticipant reports whether userID is the booking's renter or host.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (b.RenterID == userID || b.HostID == userID)
}

// BookingStatusPatch is the set of fields a status transition writes.
type BookingStatusPatch struct {
	Status             BookingStatus
	CancellationReason string
	CanceledAt         *time.Time
	CanceledBy         string
	UpdatedAt          time.Time
}
