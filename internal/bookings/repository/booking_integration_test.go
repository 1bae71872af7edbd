//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	bookingserrors "stayhub/internal/bookings/errors"
	"stayhub/internal/bookings/repository"
	"stayhub/internal/bookings/service"
	migrations "stayhub/internal/migrations/mongo"
	propertiesrepo "stayhub/internal/properties/repository"
	"stayhub/pkg/client"
	"stayhub/pkg/config"
	"stayhub/pkg/logger"
	"stayhub/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Transactions need a replica set, hence the default URI.
const defaultTestMongoURI = "mongodb://localhost:27017/?replicaSet=rs0"

func setupMongo(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		uri = defaultTestMongoURI
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}

	cfg := &config.Config{
		MongoDatabaseName:  fmt.Sprintf("stayhub_it_%d", time.Now().UnixNano()),
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		CancellationCutoff: config.DefaultCancellationCutoff,
		Log:                logger.Discard(),
		Client:             &client.Client{Mongo: mc},
	}

	require.NoError(t, migrations.RunMigration(ctx, mc, cfg.MongoDatabaseName, cfg.Log))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mc.Database(cfg.MongoDatabaseName).Drop(ctx)
		_ = mc.Disconnect(ctx)
	})
	return cfg
}

func seedProperty(t *testing.T, cfg *config.Config, hostID string) string {
	t.Helper()
	id := primitive.NewObjectID()
	_, err := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).
		Collection(propertiesrepo.CollectionName).
		InsertOne(context.Background(), bson.M{
			"_id":             id,
			"host_id":         hostID,
			"price_per_night": 100.0,
			"max_guests":      4,
			"is_active":       true,
		})
	require.NoError(t, err)
	return id.Hex()
}

func newService(cfg *config.Config) service.BookingService {
	return service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		repository.NewBookingLockRepository(cfg),
		propertiesrepo.NewMongoPropertyRepository(cfg),
		cfg,
	)
}

func checkIn(days int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

func TestConcurrentCreate_OnlyOneSucceeds(t *testing.T) {
	cfg := setupMongo(t)
	propertyID := seedProperty(t, cfg, "host-1")
	svc := newService(cfg)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			renter := model.Actor{ID: fmt.Sprintf("renter-%d", i), Role: model.RoleRenter}
			// Staggered but pairwise-overlapping ranges.
			_, err := svc.Create(context.Background(), renter, service.CreateBookingInput{
				PropertyID:     propertyID,
				CheckInDate:    checkIn(10 + i%2),
				CheckOutDate:   checkIn(13),
				NumberOfGuests: 2,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, bookingserrors.ErrDateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

func TestCreateThenCancel_FreesDates(t *testing.T) {
	cfg := setupMongo(t)
	propertyID := seedProperty(t, cfg, "host-1")
	svc := newService(cfg)
	renter := model.Actor{ID: "renter-1", Role: model.RoleRenter}

	input := service.CreateBookingInput{
		PropertyID:     propertyID,
		CheckInDate:    checkIn(30),
		CheckOutDate:   checkIn(33),
		NumberOfGuests: 2,
	}

	first, err := svc.Create(context.Background(), renter, input)
	require.NoError(t, err)
	assert.Equal(t, 300.0, first.TotalPrice)

	_, err = svc.Create(context.Background(), renter, input)
	require.ErrorIs(t, err, bookingserrors.ErrDateConflict)

	canceled, err := svc.Cancel(context.Background(), renter, first.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCanceled, canceled.Status)
	assert.Equal(t, renter.ID, canceled.CanceledBy)

	second, err := svc.Create(context.Background(), renter, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUniqueActiveCheckInIndex(t *testing.T) {
	cfg := setupMongo(t)
	repo := repository.NewMongoBookingRepository(cfg)
	propertyID := seedProperty(t, cfg, "host-1")

	booking := func() *model.Booking {
		return &model.Booking{
			PropertyID:     propertyID,
			RenterID:       "renter-1",
			HostID:         "host-1",
			CheckInDate:    checkIn(40),
			CheckOutDate:   checkIn(42),
			NumberOfGuests: 1,
			TotalPrice:     200,
			Status:         model.BookingStatusPending,
			PaymentStatus:  model.PaymentStatusPending,
		}
	}

	require.NoError(t, repo.Insert(context.Background(), booking()))
	err := repo.Insert(context.Background(), booking())
	assert.ErrorIs(t, err, bookingserrors.ErrDateConflict)

	canceled := booking()
	canceled.Status = model.BookingStatusCanceled
	assert.NoError(t, repo.Insert(context.Background(), canceled), "canceled bookings are outside the index")
}

func TestBookingLock_AcquireBumpsVersion(t *testing.T) {
	cfg := setupMongo(t)
	locks := repository.NewBookingLockRepository(cfg)
	ctx := context.Background()

	_, err := locks.Acquire(ctx, "missing-property")
	assert.Error(t, err)

	require.NoError(t, locks.Ensure(ctx, "p-1"))
	require.NoError(t, locks.Ensure(ctx, "p-1"))

	first, err := locks.Acquire(ctx, "p-1")
	require.NoError(t, err)
	second, err := locks.Acquire(ctx, "p-1")
	require.NoError(t, err)

	assert.Equal(t, "p-1", second.ID)
	assert.Equal(t, first.Version+1, second.Version)
	assert.False(t, second.UpdatedAt.IsZero())
}
