package model

// PropertySnapshot is the read-only slice of a listing the booking engine needs.
type PropertySnapshot struct {
	ID            string  `json:"id" bson:"_id"`
	HostID        string  `json:"hostId" bson:"host_id"`
	PricePerNight float64 `json:"pricePerNight" bson:"price_per_night"`
	MaxGuests     int     `json:"maxGuests" bson:"max_guests"`
	IsActive      bool    `json:"isActive" bson:"is_active"`
}
