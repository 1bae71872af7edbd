package repository

import (
	"context"
	"errors"
	"fmt"
	"stayhub/pkg/config"
	"stayhub/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository manages the per-property guard documents that
// serialize booking creation.
type BookingLockRepository interface {
	// Ensure creates the guard for propertyID if missing. It must run outside
	// a transaction: concurrent first upserts race on _id and one of them
	// fails with a duplicate key, which is harmless here.
	Ensure(ctx context.Context, propertyID string) error
	// Acquire bumps the guard inside the caller's transaction and returns it
	// as written.
	Acquire(ctx context.Context, propertyID string) (*model.BookingLock, error)
}

type mongoBookingLockRepository struct {
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoBookingLockRepository) Ensure(ctx context.Context, propertyID string) error {
	update := bson.M{
		"$setOnInsert": bson.M{
			"version":    int64(0),
			"updated_at": time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": propertyID}, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to ensure booking lock: %w", err)
	}
	return nil
}

func (r *mongoBookingLockRepository) Acquire(ctx context.Context, propertyID string) (*model.BookingLock, error) {
	update := bson.M{
		"$inc": bson.M{"version": int64(1)},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lock model.BookingLock
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": propertyID}, update, opts).Decode(&lock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("booking lock for property %s does not exist", propertyID)
		}
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	return &lock, nil
}
