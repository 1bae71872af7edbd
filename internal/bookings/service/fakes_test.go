package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bookingserrors "stayhub/internal/bookings/errors"
	"stayhub/internal/bookings/repository"
	propertieserrors "stayhub/internal/properties/errors"
	"stayhub/pkg/config"
	mongotx "stayhub/pkg/db/mongo"
	"stayhub/pkg/logger"
	"stayhub/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking

	insertErr error
	findErr   error
	// beforeUpdate runs between the service's read and its conditional write.
	beforeUpdate func(b *model.Booking)
	txCalls      int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[string]*model.Booking{}}
}

func (r *fakeBookingRepo) seed(b *model.Booking) *model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = primitive.NewObjectID().Hex()
	}
	cp := *b
	r.bookings[b.ID] = &cp
	return b
}

func (r *fakeBookingRepo) get(id string) *model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (r *fakeBookingRepo) Insert(_ context.Context, booking *model.Booking) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	booking.ID = primitive.NewObjectID().Hex()
	cp := *booking
	r.bookings[booking.ID] = &cp
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	b := r.get(id)
	if b == nil {
		return nil, bookingserrors.ErrNotFound
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(r.bookings[id])
	}
	return b, nil
}

func (r *fakeBookingRepo) FindConflicting(_ context.Context, propertyID string, checkIn, checkOut time.Time, statuses []model.BookingStatus) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.PropertyID != propertyID || !containsStatus(statuses, b.Status) {
			continue
		}
		if b.CheckInDate.Before(checkOut) && b.CheckOutDate.After(checkIn) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, id string, from model.BookingStatus, patch *model.BookingStatusPatch) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return nil, fmt.Errorf("%w: booking %s is no longer %s", bookingserrors.ErrInvalidTransition, id, from)
	}
	b.Status = patch.Status
	b.UpdatedAt = patch.UpdatedAt
	if patch.CanceledAt != nil {
		b.CanceledAt = patch.CanceledAt
		b.CanceledBy = patch.CanceledBy
	}
	if patch.CancellationReason != "" {
		b.CancellationReason = patch.CancellationReason
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookingRepo) FindByParticipant(_ context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error) {
	matched := r.matching(filter)
	if offset >= int64(len(matched)) {
		return []*model.Booking{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *fakeBookingRepo) CountByParticipant(_ context.Context, filter repository.ListFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *fakeBookingRepo) matching(filter repository.ListFilter) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if filter.RenterID != "" && b.RenterID != filter.RenterID {
			continue
		}
		if filter.HostID != "" && b.HostID != filter.HostID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInDate.After(out[j].CheckInDate) })
	return out
}

func (r *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	r.mu.Lock()
	r.txCalls++
	r.mu.Unlock()
	return fn(ctx)
}

func containsStatus(statuses []model.BookingStatus, s model.BookingStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type fakeLockRepo struct {
	mu       sync.Mutex
	ensured  map[string]bool
	acquired map[string]int
	err      error
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{ensured: map[string]bool{}, acquired: map[string]int{}}
}

func (l *fakeLockRepo) Ensure(_ context.Context, propertyID string) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensured[propertyID] = true
	return nil
}

func (l *fakeLockRepo) Acquire(_ context.Context, propertyID string) (*model.BookingLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ensured[propertyID] {
		return nil, errors.New("lock not ensured")
	}
	l.acquired[propertyID]++
	return &model.BookingLock{ID: propertyID, Version: int64(l.acquired[propertyID]), UpdatedAt: fixedNow}, nil
}

type fakePropertyRepo struct {
	properties map[string]*model.PropertySnapshot
	err        error
}

func (p *fakePropertyRepo) FindByID(_ context.Context, id string) (*model.PropertySnapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	prop, ok := p.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", propertieserrors.ErrNotFound, id)
	}
	cp := *prop
	return &cp, nil
}

const (
	hostID     = "host-1"
	renterID   = "renter-1"
	strangerID = "renter-2"
)

var (
	fixedNow   = time.Date(2030, time.January, 10, 12, 0, 0, 0, time.UTC)
	propertyID = primitive.NewObjectID().Hex()
	host       = model.Actor{ID: hostID, Role: model.RoleHost}
	renter     = model.Actor{ID: renterID, Role: model.RoleRenter}
	stranger   = model.Actor{ID: strangerID, Role: model.RoleRenter}
)

type fixture struct {
	repo       *fakeBookingRepo
	locks      *fakeLockRepo
	properties *fakePropertyRepo
	svc        BookingService
}

func newFixture() *fixture {
	f := &fixture{
		repo:  newFakeBookingRepo(),
		locks: newFakeLockRepo(),
		properties: &fakePropertyRepo{properties: map[string]*model.PropertySnapshot{
			propertyID: {
				ID:            propertyID,
				HostID:        hostID,
				PricePerNight: 100,
				MaxGuests:     4,
				IsActive:      true,
			},
		}},
	}
	cfg := &config.Config{
		Log:                logger.Discard(),
		CancellationCutoff: config.DefaultCancellationCutoff,
	}
	f.svc = NewBookingService(f.repo, f.locks, f.properties, cfg, WithClock(func() time.Time { return fixedNow }))
	return f
}

func date(daysFromNow int) time.Time {
	return startOfDay(fixedNow).AddDate(0, 0, daysFromNow)
}

func (f *fixture) seedBooking(status model.BookingStatus, checkIn, checkOut time.Time) *model.Booking {
	return f.repo.seed(&model.Booking{
		PropertyID:     propertyID,
		RenterID:       renterID,
		HostID:         hostID,
		CheckInDate:    checkIn,
		CheckOutDate:   checkOut,
		NumberOfGuests: 2,
		TotalPrice:     float64(nights(checkIn, checkOut)) * 100,
		Status:         status,
		PaymentStatus:  model.PaymentStatusPending,
	})
}
