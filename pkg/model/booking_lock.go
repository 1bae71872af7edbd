package model

import "time"

// BookingLock is the per-property guard document written inside every booking
// creation transaction. Concurrent creations for one property both write it,
// so MongoDB lets only one of them commit.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Version   int64     `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
