package service

import (
	"context"
	"time"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// RideStore is the persistence the engine needs for rides.  BookSeats and
// CancelBooking each pair a conditional seat update with the booking row
// it pays for, atomically: either both apply or neither does.  The engine
// never computes seat counts itself.
type RideStore interface {
	Create(ctx context.Context, ride *model.Ride) error
	GetByID(ctx context.Context, id string) (*model.Ride, error)
	ListUpcoming(ctx context.Context, since time.Time, limit int) ([]model.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]model.Ride, error)
	BookSeats(ctx context.Context, b *model.Booking) (*model.Ride, error)
	CancelBooking(ctx context.Context, bookingID, riderID string) (*model.Booking, *model.Ride, error)
	DeleteWithBookings(ctx context.Context, id string) ([]model.Booking, error)
}

// BookingStore is the persistence the engine needs for bookings.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByRider(ctx context.Context, riderID string) ([]model.Booking, error)
	ListByRide(ctx context.Context, rideID string) ([]model.Booking, error)
	MarkCaptured(ctx context.Context, id, transactionID string, at time.Time) error
}

// FeedbackStore persists rider ratings of drivers.
type FeedbackStore interface {
	Create(ctx context.Context, f *model.Feedback) error
	ListByDriver(ctx context.Context, driverID string) ([]model.Feedback, error)
}

// EventPublisher delivers a domain event to the bus.  Delivery is best
// effort.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// JobDispatcher enqueues a durable notification job.
type JobDispatcher interface {
	Enqueue(ctx context.Context, jobType string, payload map[string]any) (model.JobHandle, error)
}

// Invalidator drops cached listings.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}
