// Package service contains the booking engine: the synchronous core that
// validates requests and mutates seat inventory, and the best-effort tail
// that invalidates caches, publishes events and enqueues notifications
// after a mutation has committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/repository"
)

// ListingsGroup is the cache group that holds ride listing responses.
const ListingsGroup = "rides"

// DefaultTailTimeout bounds each tail effect when none is configured.
const DefaultTailTimeout = 5 * time.Second

const listLimit = 100

const maxCommentRunes = 1000

// Deps wires an Engine to its collaborators.  Rides and Bookings are
// required; a nil Events, Jobs or Cache disables that tail effect, and a
// nil Feedback disables ratings.
type Deps struct {
	Rides       RideStore
	Bookings    BookingStore
	Feedback    FeedbackStore
	Events      EventPublisher
	Jobs        JobDispatcher
	Cache       Invalidator
	Logger      *slog.Logger
	TailTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

// Engine coordinates bookings against shared ride inventory.  It holds no
// seat state of its own; every seat change goes through RideStore.
type Engine struct {
	rides    RideStore
	bookings BookingStore
	feedback FeedbackStore
	events   EventPublisher
	jobs     JobDispatcher
	cache    Invalidator
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	tail     *tailRunner
}

// NewEngine builds an Engine from d, filling in defaults for optional
// fields.
func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.TailTimeout <= 0 {
		d.TailTimeout = DefaultTailTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &Engine{
		rides:    d.Rides,
		bookings: d.Bookings,
		feedback: d.Feedback,
		events:   d.Events,
		jobs:     d.Jobs,
		cache:    d.Cache,
		log:      d.Logger,
		now:      d.Now,
		newID:    d.NewID,
		tail:     newTailRunner(d.Logger, d.TailTimeout),
	}
}

// Wait blocks until every tail effect started so far has finished.
func (e *Engine) Wait() { e.tail.wait() }

// CreateRide publishes a new ride owned by the calling driver.
func (e *Engine) CreateRide(ctx context.Context, p model.Principal, f model.RideFields) (*model.Ride, error) {
	if !p.Is(p.ID, model.RoleDriver) {
		return nil, ErrUnauthorized
	}
	now := e.now().UTC()
	if err := validateRide(f, now); err != nil {
		return nil, err
	}

	ride := &model.Ride{
		ID:             e.newID(),
		DriverID:       p.ID,
		DriverName:     strings.TrimSpace(f.DriverName),
		DriverContact:  strings.TrimSpace(f.DriverContact),
		Origin:         strings.TrimSpace(f.Origin),
		Destination:    strings.TrimSpace(f.Destination),
		DepartureAt:    f.DepartureAt.UTC(),
		Capacity:       f.Capacity,
		AvailableSeats: f.Capacity,
		PriceCents:     f.PriceCents,
		CreatedAt:      now,
	}
	if err := e.rides.Create(ctx, ride); err != nil {
		return nil, err
	}
	e.log.Info("ride_created", "ride_id", ride.ID, "driver_id", p.ID, "capacity", ride.Capacity)

	seats := ride.AvailableSeats
	e.invalidateListings()
	e.publish(model.TopicRideUpdated, model.RideUpdatedEvent{RideID: ride.ID, AvailableSeats: &seats})
	return ride, nil
}

func validateRide(f model.RideFields, now time.Time) error {
	if strings.TrimSpace(f.Origin) == "" || strings.TrimSpace(f.Destination) == "" ||
		f.DepartureAt.IsZero() || strings.TrimSpace(f.DriverName) == "" ||
		strings.TrimSpace(f.DriverContact) == "" {
		return invalid(MsgFieldsRequired)
	}
	if f.Capacity < 1 {
		return invalid(MsgInvalidCapacity)
	}
	if f.PriceCents < 0 {
		return invalid(MsgNegativePrice)
	}
	if !touchesCampus(f.Origin) && !touchesCampus(f.Destination) {
		return invalid(MsgCampusRequired)
	}
	if !f.DepartureAt.After(now) {
		return invalid(MsgDepartureFuture)
	}
	return nil
}

func touchesCampus(place string) bool {
	return strings.Contains(strings.ToLower(place), "campus")
}

// BookRide reserves seats on a ride for the calling rider.  The seat
// decrement, its precondition and the booking insert are one store
// operation: a rejected or failed reservation leaves no booking behind.
func (e *Engine) BookRide(ctx context.Context, p model.Principal, rideID string, seats int) (*model.Booking, error) {
	if !p.Is(p.ID, model.RoleRider) {
		return nil, ErrUnauthorized
	}
	if seats < 1 {
		return nil, invalid(MsgInvalidSeats)
	}
	ride, err := e.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	if !ride.DepartureAt.After(now) {
		return nil, invalid(MsgBookingInPast)
	}

	b := &model.Booking{
		ID:            e.newID(),
		RiderID:       p.ID,
		RideID:        rideID,
		Seats:         seats,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentNone,
		BookedAt:      now,
	}
	ride, err = e.rides.BookSeats(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("reserve seats: %w", err)
	}
	e.log.Info("booking_created", "booking_id", b.ID, "ride_id", rideID, "rider_id", p.ID,
		"seats", seats, "available_seats", ride.AvailableSeats)

	e.invalidateListings()
	e.publish(model.TopicBookingCreated, model.BookingCreatedEvent{BookingID: b.ID, RideID: rideID, RiderID: p.ID})
	e.enqueue(model.JobBookingCreated, map[string]any{
		"bookingId":  b.ID,
		"rideId":     rideID,
		"riderId":    p.ID,
		"seats":      seats,
		"recipients": []string{p.ID, ride.DriverID},
	})
	return b, nil
}

// CancelBooking deletes the caller's booking and returns its seats to the
// ride.  Delete and release commit together, so concurrent cancels of one
// booking release it at most once and a failed release keeps the booking.
func (e *Engine) CancelBooking(ctx context.Context, p model.Principal, bookingID string) (*model.Booking, error) {
	b, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.Is(b.RiderID, model.RoleRider) {
		return nil, ErrUnauthorized
	}

	b, ride, err := e.rides.CancelBooking(ctx, bookingID, p.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrForbidden):
		return nil, ErrUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		return nil, err
	case errors.Is(err, repository.ErrCapacityExceeded):
		e.log.Error("seat_release_inconsistent", "booking_id", bookingID, "rider_id", p.ID)
		return nil, fmt.Errorf("release seats: %w", err)
	default:
		e.log.Error("seat_release_failed", "booking_id", bookingID, "rider_id", p.ID, "error", err)
		return nil, fmt.Errorf("release seats: %w", err)
	}

	recipients := []string{b.RiderID}
	var available *int
	if ride != nil {
		seats := ride.AvailableSeats
		available = &seats
		recipients = append(recipients, ride.DriverID)
	}
	b.Status = model.BookingCancelled
	e.log.Info("booking_cancelled", "booking_id", bookingID, "ride_id", b.RideID, "rider_id", p.ID, "seats", b.Seats)

	e.invalidateListings()
	e.publish(model.TopicRideUpdated, model.RideUpdatedEvent{RideID: b.RideID, AvailableSeats: available})
	e.enqueue(model.JobBookingCancelled, map[string]any{
		"bookingId":  bookingID,
		"rideId":     b.RideID,
		"riderId":    b.RiderID,
		"seats":      b.Seats,
		"recipients": recipients,
	})
	return b, nil
}

// CancelRide deletes the caller's ride together with all of its bookings.
// It returns the bookings that were removed.
func (e *Engine) CancelRide(ctx context.Context, p model.Principal, rideID string) ([]model.Booking, error) {
	ride, err := e.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !p.Is(ride.DriverID, model.RoleDriver) {
		return nil, ErrUnauthorized
	}
	removed, err := e.rides.DeleteWithBookings(ctx, rideID)
	if err != nil {
		return nil, err
	}
	e.log.Info("ride_cancelled", "ride_id", rideID, "driver_id", p.ID, "bookings_removed", len(removed))

	riders := make([]string, 0, len(removed))
	seen := make(map[string]bool, len(removed))
	for _, b := range removed {
		if !seen[b.RiderID] {
			seen[b.RiderID] = true
			riders = append(riders, b.RiderID)
		}
	}
	e.publish(model.TopicRideUpdated, model.RideUpdatedEvent{RideID: rideID, Cancelled: true})
	e.invalidateListings()
	e.enqueue(model.JobRideCancelled, map[string]any{
		"rideId":      rideID,
		"origin":      ride.Origin,
		"destination": ride.Destination,
		"recipients":  riders,
	})
	return removed, nil
}

// CapturePayment records the payment of a booking on one of the calling
// driver's rides.  An empty transactionID is replaced with a simulated
// reference.
func (e *Engine) CapturePayment(ctx context.Context, p model.Principal, bookingID, transactionID string) (*model.Booking, error) {
	b, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	ride, err := e.rides.GetByID(ctx, b.RideID)
	if err != nil {
		return nil, err
	}
	if !p.Is(ride.DriverID, model.RoleDriver) {
		return nil, ErrUnauthorized
	}
	if b.PaymentStatus == model.PaymentCaptured {
		return nil, invalid(MsgAlreadyCaptured)
	}

	now := e.now().UTC()
	if strings.TrimSpace(transactionID) == "" {
		transactionID = fmt.Sprintf("SIM-%d", now.UnixNano())
	}
	if err := e.bookings.MarkCaptured(ctx, bookingID, transactionID, now); err != nil {
		return nil, err
	}
	b.PaymentStatus = model.PaymentCaptured
	b.Status = model.BookingConfirmed
	b.TransactionID = &transactionID
	b.ChargedAt = &now
	e.log.Info("payment_captured", "booking_id", bookingID, "ride_id", b.RideID, "transaction_id", transactionID)

	e.publish(model.TopicPaymentCaptured, model.PaymentCapturedEvent{BookingID: bookingID, RideID: b.RideID, TransactionID: transactionID})
	e.enqueue(model.JobPaymentCaptured, map[string]any{
		"bookingId":     bookingID,
		"rideId":        b.RideID,
		"transactionId": transactionID,
		"recipients":    []string{b.RiderID},
	})
	return b, nil
}

// LeaveFeedback records the calling rider's rating of the driver of one
// of their bookings.  Each booking can be rated once.
func (e *Engine) LeaveFeedback(ctx context.Context, p model.Principal, bookingID string, rating int, comment string) (*model.Feedback, error) {
	if e.feedback == nil || !p.Is(p.ID, model.RoleRider) {
		return nil, ErrUnauthorized
	}
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, invalid(MsgInvalidRating)
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentRunes {
		return nil, invalid(MsgCommentTooLong)
	}

	b, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.Is(b.RiderID, model.RoleRider) {
		return nil, ErrUnauthorized
	}
	ride, err := e.rides.GetByID(ctx, b.RideID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid(MsgFeedbackNoRide)
	}
	if err != nil {
		return nil, err
	}

	f := &model.Feedback{
		ID:        e.newID(),
		BookingID: bookingID,
		RideID:    b.RideID,
		DriverID:  ride.DriverID,
		RiderID:   p.ID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: e.now().UTC(),
	}
	if err := e.feedback.Create(ctx, f); err != nil {
		return nil, err
	}
	e.log.Info("feedback_received", "feedback_id", f.ID, "booking_id", bookingID, "driver_id", ride.DriverID, "rating", rating)

	e.enqueue(model.JobFeedbackReceived, map[string]any{
		"feedbackId": f.ID,
		"bookingId":  bookingID,
		"rideId":     b.RideID,
		"rating":     rating,
		"recipients": []string{ride.DriverID},
	})
	return f, nil
}

// DriverFeedback returns the ratings left for the calling driver, newest
// first.
func (e *Engine) DriverFeedback(ctx context.Context, p model.Principal) ([]model.Feedback, error) {
	if e.feedback == nil || !p.Is(p.ID, model.RoleDriver) {
		return nil, ErrUnauthorized
	}
	return e.feedback.ListByDriver(ctx, p.ID)
}

// ListRides returns upcoming rides, soonest first.
func (e *Engine) ListRides(ctx context.Context) ([]model.Ride, error) {
	return e.rides.ListUpcoming(ctx, e.now().UTC(), listLimit)
}

// GetRide returns a single ride.
func (e *Engine) GetRide(ctx context.Context, id string) (*model.Ride, error) {
	return e.rides.GetByID(ctx, id)
}

// ListMyBookings returns the calling rider's bookings.
func (e *Engine) ListMyBookings(ctx context.Context, p model.Principal) ([]model.Booking, error) {
	if !p.Is(p.ID, model.RoleRider) {
		return nil, ErrUnauthorized
	}
	return e.bookings.ListByRider(ctx, p.ID)
}

// DriverRides returns the calling driver's rides with the bookings held on
// each.
func (e *Engine) DriverRides(ctx context.Context, p model.Principal) ([]model.RideWithBookings, error) {
	if !p.Is(p.ID, model.RoleDriver) {
		return nil, ErrUnauthorized
	}
	rides, err := e.rides.ListByDriver(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]model.RideWithBookings, 0, len(rides))
	for _, r := range rides {
		bookings, err := e.bookings.ListByRide(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.RideWithBookings{Ride: r, Bookings: bookings})
	}
	return out, nil
}

func (e *Engine) invalidateListings() {
	if e.cache == nil {
		return
	}
	e.tail.goEffect("invalidate", func(ctx context.Context) error {
		return e.cache.Invalidate(ctx, ListingsGroup)
	})
}

func (e *Engine) publish(topic string, event any) {
	if e.events == nil {
		return
	}
	e.tail.goEffect("publish:"+topic, func(ctx context.Context) error {
		return e.events.Publish(ctx, topic, event)
	})
}

func (e *Engine) enqueue(jobType string, payload map[string]any) {
	if e.jobs == nil {
		return
	}
	e.tail.goEffect("enqueue:"+jobType, func(ctx context.Context) error {
		_, err := e.jobs.Enqueue(ctx, jobType, payload)
		return err
	})
}
