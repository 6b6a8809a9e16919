package model

import "time"

// Rating bounds for Feedback.
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is a rider's rating of the driver of one booked ride.  A
// booking carries at most one.
type Feedback struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	RideID    string    `json:"ride_id"`
	DriverID  string    `json:"driver_id"`
	RiderID   string    `json:"rider_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AverageRating returns the mean rating of items, or 0 for none.
func AverageRating(items []Feedback) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0
	for _, f := range items {
		sum += f.Rating
	}
	return float64(sum) / float64(len(items))
}
