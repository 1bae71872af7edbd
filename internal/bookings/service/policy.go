package service

import (
	"stayhub/pkg/model"
	"time"
)

const day = 24 * time.Hour

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingStatusPending:   {model.BookingStatusConfirmed, model.BookingStatusCanceled},
	model.BookingStatusConfirmed: {model.BookingStatusCanceled, model.BookingStatusCompleted},
	model.BookingStatusCanceled:  {},
	model.BookingStatusCompleted: {},
}

// overlaps treats both ranges as half-open, so a checkout on day X and a
// check-in on day X do not collide.
func overlaps(inA, outA, inB, outB time.Time) bool {
	return inA.Before(outB) && inB.Before(outA)
}

// nights rounds partial days up.
func nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0
	}
	n := int(d / day)
	if d%day != 0 {
		n++
	}
	return n
}

func totalPrice(checkIn, checkOut time.Time, pricePerNight float64) float64 {
	return float64(nights(checkIn, checkOut)) * pricePerNight
}

func canTransition(from, to model.BookingStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func hoursUntilCheckIn(checkIn, now time.Time) float64 {
	return checkIn.Sub(now).Hours()
}

// withinCancellationCutoff is true only for check-ins still ahead of now and
// closer than cutoff. Check-ins already in the past are not blocked.
func withinCancellationCutoff(checkIn, now time.Time, cutoff time.Duration) bool {
	hours := hoursUntilCheckIn(checkIn, now)
	return hours > 0 && hours < cutoff.Hours()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
