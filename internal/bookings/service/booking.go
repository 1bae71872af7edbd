package service

import (
	"context"
	"errors"
	bookingserrors "stayhub/internal/bookings/errors"
	"stayhub/internal/bookings/repository"
	propertieserrors "stayhub/internal/properties/errors"
	propertiesrepo "stayhub/internal/properties/repository"
	"stayhub/pkg/config"
	apperrors "stayhub/pkg/errors"
	"stayhub/pkg/model"
	"stayhub/pkg/sanitizer"
	"sync"
	"time"
)

type CreateBookingInput struct {
	PropertyID      string
	CheckInDate     time.Time
	CheckOutDate    time.Time
	NumberOfGuests  int
	SpecialRequests string
}

// BookingService is the booking engine. Every operation takes the acting
// user explicitly and returns *apperrors.AppError values wrapping the
// sentinels in internal/bookings/errors.
type BookingService interface {
	Create(ctx context.Context, actor model.Actor, input CreateBookingInput) (*model.Booking, error)
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	ListForActor(ctx context.Context, actor model.Actor, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	UpdateStatus(ctx context.Context, actor model.Actor, id string, newStatus model.BookingStatus, reason string) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, id string, reason string) (*model.Booking, error)
}

type Option func(*bookingService)

// WithClock replaces time.Now, mainly for tests around the cancellation cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) {
		s.now = now
	}
}

type bookingService struct {
	repo         repository.BookingRepository
	lockRepo     repository.BookingLockRepository
	propertyRepo propertiesrepo.PropertyRepository
	cfg          *config.Config
	now          func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	propertyRepo propertiesrepo.PropertyRepository,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:         repo,
		lockRepo:     lockRepo,
		propertyRepo: propertyRepo,
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) Create(ctx context.Context, actor model.Actor, input CreateBookingInput) (*model.Booking, error) {
	if actor.Role != model.RoleRenter {
		s.cfg.Log.Warn("Booking creation denied", "actor_id", actor.ID, "role", actor.Role)
		return nil, permissionDenied("Only renters can create bookings")
	}

	now := s.now().UTC()
	checkIn := input.CheckInDate.UTC()
	checkOut := input.CheckOutDate.UTC()

	if startOfDay(checkIn).Before(startOfDay(now)) {
		return nil, invalidDateRange("Check-in date cannot be in the past")
	}
	if !checkIn.Before(checkOut) {
		return nil, invalidDateRange("Check-out date must be after check-in date")
	}
	if input.NumberOfGuests < 1 {
		return nil, apperrors.InvalidInput("Number of guests must be at least 1")
	}

	property, err := s.propertyRepo.FindByID(ctx, input.PropertyID)
	if err != nil {
		if errors.Is(err, propertieserrors.ErrNotFound) || errors.Is(err, propertieserrors.ErrInvalidID) {
			return nil, propertyNotFound(input.PropertyID)
		}
		s.cfg.Log.Error("Failed to load property", "property_id", input.PropertyID, "error", err)
		return nil, storageError("Failed to load property", err)
	}
	if !property.IsActive {
		return nil, propertyUnavailable()
	}
	if input.NumberOfGuests > property.MaxGuests {
		return nil, capacityExceeded(property.MaxGuests)
	}

	booking := &model.Booking{
		PropertyID:      property.ID,
		RenterID:        actor.ID,
		HostID:          property.HostID,
		CheckInDate:     checkIn,
		CheckOutDate:    checkOut,
		NumberOfGuests:  input.NumberOfGuests,
		TotalPrice:      totalPrice(checkIn, checkOut, property.PricePerNight),
		Status:          model.BookingStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		SpecialRequests: sanitizer.SanitizeNote(input.SpecialRequests, model.MaxNoteLength),
		CreatedAt:       now.Truncate(time.Millisecond),
	}
	booking.UpdatedAt = booking.CreatedAt

	if err := s.lockRepo.Ensure(ctx, property.ID); err != nil {
		s.cfg.Log.Error("Failed to prepare booking lock", "property_id", property.ID, "error", err)
		return nil, storageError("Failed to create booking", err)
	}

	// The guard bump makes concurrent creations on one property conflict, so
	// only one of them can pass the overlap check against a given snapshot.
	var lockVersion int64
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		lock, err := s.lockRepo.Acquire(txCtx, property.ID)
		if err != nil {
			return err
		}
		lockVersion = lock.Version
		if err := s.verifyAvailability(txCtx, booking); err != nil {
			return err
		}
		booking.ID = ""
		return s.repo.Insert(txCtx, booking)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			s.cfg.Log.Warn("Booking rejected", "property_id", property.ID, "renter_id", actor.ID, "error", err)
			return nil, err
		}
		if errors.Is(err, bookingserrors.ErrDateConflict) {
			s.cfg.Log.Warn("Booking rejected by unique index", "property_id", property.ID, "renter_id", actor.ID)
			return nil, dateConflict()
		}
		s.cfg.Log.Error("Failed to create booking", "property_id", property.ID, "error", err)
		return nil, storageError("Failed to create booking", err)
	}

	booking.NumberOfNights = nights(booking.CheckInDate, booking.CheckOutDate)
	s.cfg.Log.Info("Booking created successfully",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"renter_id", booking.RenterID,
		"check_in", booking.CheckInDate,
		"check_out", booking.CheckOutDate,
		"total_price", booking.TotalPrice,
		"lock_version", lockVersion,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(actor.ID) {
		return nil, permissionDenied("You do not have permission to view this booking")
	}
	return withNights(booking), nil
}

func (s *bookingService) ListForActor(
	ctx context.Context,
	actor model.Actor,
	status model.BookingStatus,
	limit int,
	offset int64,
) ([]*model.Booking, int64, error) {
	var filter repository.ListFilter
	switch actor.Role {
	case model.RoleRenter:
		filter.RenterID = actor.ID
	case model.RoleHost:
		filter.HostID = actor.ID
	default:
		return nil, 0, permissionDenied("Unknown role")
	}
	if status != "" {
		if !status.IsValid() {
			return nil, 0, apperrors.InvalidInput("Invalid booking status filter: " + status.String())
		}
		filter.Status = status
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByParticipant(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "actor_id", actor.ID, "error", err)
			errCount = storageError("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindByParticipant(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings",
				"actor_id", actor.ID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = storageError("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	for _, b := range bookings {
		withNights(b)
	}
	return bookings, count, nil
}

func (s *bookingService) UpdateStatus(
	ctx context.Context,
	actor model.Actor,
	id string,
	newStatus model.BookingStatus,
	reason string,
) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(actor.ID) {
		return nil, permissionDenied("You do not have permission to update this booking")
	}
	if !canTransition(booking.Status, newStatus) {
		s.cfg.Log.Warn("Invalid booking transition",
			"booking_id", id,
			"from", booking.Status,
			"to", newStatus,
		)
		return nil, invalidTransition(booking.Status, newStatus)
	}
	if newStatus == model.BookingStatusConfirmed && actor.ID != booking.HostID {
		return nil, permissionDenied("Only the host can confirm a booking")
	}

	return s.transition(ctx, actor, booking, newStatus, reason)
}

func (s *bookingService) Cancel(ctx context.Context, actor model.Actor, id string, reason string) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(actor.ID) {
		return nil, permissionDenied("You do not have permission to cancel this booking")
	}

	switch booking.Status {
	case model.BookingStatusCanceled:
		return nil, alreadyCanceled()
	case model.BookingStatusCompleted:
		return nil, cannotCancelCompleted()
	}

	cutoff, now := s.cfg.CancellationCutoff, s.now()
	if withinCancellationCutoff(booking.CheckInDate, now, cutoff) {
		s.cfg.Log.Warn("Cancellation window closed",
			"booking_id", id,
			"hours_until_check_in", hoursUntilCheckIn(booking.CheckInDate, now),
		)
		return nil, cancellationWindowClosed(cutoff.Hours())
	}

	if !canTransition(booking.Status, model.BookingStatusCanceled) {
		return nil, invalidTransition(booking.Status, model.BookingStatusCanceled)
	}

	return s.transition(ctx, actor, booking, model.BookingStatusCanceled, reason)
}

// --- Helpers ---

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, bookingNotFound(id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to load booking", "booking_id", id, "error", err)
		return nil, storageError("Failed to retrieve booking", err)
	}
	return booking, nil
}

// transition writes newStatus only if the stored status is still the one
// that was validated, so two racing transitions cannot both succeed.
func (s *bookingService) transition(
	ctx context.Context,
	actor model.Actor,
	booking *model.Booking,
	newStatus model.BookingStatus,
	reason string,
) (*model.Booking, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	patch := &model.BookingStatusPatch{
		Status:    newStatus,
		UpdatedAt: now,
	}
	if newStatus == model.BookingStatusCanceled {
		patch.CanceledAt = &now
		patch.CanceledBy = actor.ID
		patch.CancellationReason = sanitizer.SanitizeNote(reason, model.MaxNoteLength)
	}

	updated, err := s.repo.UpdateStatus(ctx, booking.ID, booking.Status, patch)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrInvalidTransition) {
			s.cfg.Log.Warn("Booking status changed concurrently",
				"booking_id", booking.ID,
				"expected", booking.Status,
				"to", newStatus,
			)
			return nil, invalidTransition(booking.Status, newStatus)
		}
		s.cfg.Log.Error("Failed to update booking status", "booking_id", booking.ID, "error", err)
		return nil, storageError("Failed to update booking status", err)
	}

	s.cfg.Log.Info("Booking status updated",
		"booking_id", updated.ID,
		"from", booking.Status,
		"to", updated.Status,
		"actor_id", actor.ID,
	)
	updated.PreviousStatus = booking.Status
	return withNights(updated), nil
}

func (s *bookingService) verifyAvailability(ctx context.Context, booking *model.Booking) error {
	existing, err := s.repo.FindConflicting(ctx, booking.PropertyID, booking.CheckInDate, booking.CheckOutDate, model.ActiveBookingStatuses)
	if err != nil {
		return err
	}

	for _, b := range existing {
		if overlaps(b.CheckInDate, b.CheckOutDate, booking.CheckInDate, booking.CheckOutDate) {
			return dateConflict().WithDetails(map[string]any{
				"checkInDate":  b.CheckInDate.Format(time.DateOnly),
				"checkOutDate": b.CheckOutDate.Format(time.DateOnly),
			})
		}
	}
	return nil
}

func withNights(b *model.Booking) *model.Booking {
	b.NumberOfNights = nights(b.CheckInDate, b.CheckOutDate)
	return b
}
