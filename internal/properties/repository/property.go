package repository

import (
	"context"
	"errors"
	"fmt"
	propertieserrors "stayhub/internal/properties/errors"
	"stayhub/pkg/config"
	"stayhub/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Properties"
)

// PropertyRepository is a read-only view over listings. Listing CRUD lives in
// another service; bookings only need the pricing and capacity snapshot.
type PropertyRepository interface {
	FindByID(ctx context.Context, id string) (*model.PropertySnapshot, error)
}

type mongoPropertyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPropertyRepository(cfg *config.Config) PropertyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPropertyRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

var snapshotProjection = bson.M{
	"_id":             1,
	"host_id":         1,
	"price_per_night": 1,
	"max_guests":      1,
	"is_active":       1,
}

func (r *mongoPropertyRepository) FindByID(ctx context.Context, id string) (*model.PropertySnapshot, error) {
	if _, ok := ctx.(mongo.SessionContext); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.readTimeout())
		defer cancel()
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", propertieserrors.ErrInvalidID, id)
	}

	opts := options.FindOne().SetProjection(snapshotProjection)

	var snapshot model.PropertySnapshot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}, opts).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", propertieserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find property: %w", err)
	}
	return &snapshot, nil
}

func (r *mongoPropertyRepository) readTimeout() time.Duration {
	if r.cfg.ReadTimeout > 0 {
		return r.cfg.ReadTimeout
	}
	return config.DefaultReadTimeout
}
