package events

import (
	"context"
	"time"

	"stayhub/internal/bookings/service"
	"stayhub/pkg/kafka"
	"stayhub/pkg/logger"
	"stayhub/pkg/middleware"
	"stayhub/pkg/model"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"

	schemaVersion = "1"
)

// BookingEvent is the payload of every booking event.
type BookingEvent struct {
	BookingID      string              `json:"bookingId"`
	PropertyID     string              `json:"propertyId"`
	RenterID       string              `json:"renterId"`
	HostID         string              `json:"hostId"`
	Status         model.BookingStatus `json:"status"`
	PreviousStatus model.BookingStatus `json:"previousStatus,omitempty"`
	ActorID        string              `json:"actorId"`
	OccurredAt     time.Time           `json:"occurredAt"`
}

// publishingService emits an event after each successful write of the wrapped
// service. Publish failures are logged and never reach the caller.
type publishingService struct {
	service.BookingService
	publisher kafka.Publisher
	source    string
	log       *logger.Logger
}

func NewPublishingService(next service.BookingService, publisher kafka.Publisher, source string, log *logger.Logger) service.BookingService {
	return &publishingService{
		BookingService: next,
		publisher:      publisher,
		source:         source,
		log:            log,
	}
}

func (s *publishingService) Create(ctx context.Context, actor model.Actor, input service.CreateBookingInput) (*model.Booking, error) {
	booking, err := s.BookingService.Create(ctx, actor, input)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventBookingCreated, booking, "", actor)
	return booking, nil
}

func (s *publishingService) UpdateStatus(ctx context.Context, actor model.Actor, id string, newStatus model.BookingStatus, reason string) (*model.Booking, error) {
	booking, err := s.BookingService.UpdateStatus(ctx, actor, id, newStatus, reason)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventBookingStatusChanged, booking, booking.PreviousStatus, actor)
	return booking, nil
}

func (s *publishingService) Cancel(ctx context.Context, actor model.Actor, id string, reason string) (*model.Booking, error) {
	booking, err := s.BookingService.Cancel(ctx, actor, id, reason)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventBookingStatusChanged, booking, booking.PreviousStatus, actor)
	return booking, nil
}

func (s *publishingService) publish(ctx context.Context, eventType string, booking *model.Booking, previous model.BookingStatus, actor model.Actor) {
	event := BookingEvent{
		BookingID:      booking.ID,
		PropertyID:     booking.PropertyID,
		RenterID:       booking.RenterID,
		HostID:         booking.HostID,
		Status:         booking.Status,
		PreviousStatus: previous,
		ActorID:        actor.ID,
		OccurredAt:     time.Now().UTC(),
	}

	msg, err := kafka.NewMessage().
		WithKey(booking.ID).
		WithValue(event).
		WithEventType(eventType).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSchemaVersion(schemaVersion).
		WithSource(s.source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		s.log.Error("Failed to build booking event", "event_type", eventType, "booking_id", booking.ID, "error", err)
		return
	}

	// The request may be canceled right after the response is written.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), msg); err != nil {
		s.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
