package service

import "errors"

// ErrUnauthorized is returned when the principal is not allowed to perform
// the operation on the target resource: wrong role, or not its owner.
var ErrUnauthorized = errors.New("unauthorized")

// Caller-facing messages.
const (
	MsgFieldsRequired  = "All fields required"
	MsgCampusRequired  = "Ride must start or end at campus"
	MsgDepartureFuture = "Ride time must be in the future"
	MsgBookingInPast   = "Cannot book a ride in the past"
	MsgNotEnoughSeats  = "Not enough seats available"
	MsgInvalidSeats    = "Seats must be at least 1"
	MsgInvalidCapacity = "Capacity must be at least 1"
	MsgNegativePrice   = "Price must not be negative"
	MsgAlreadyCaptured = "Payment already captured"
	MsgInvalidRating   = "Rating must be between 1 and 5"
	MsgCommentTooLong  = "Comment must be at most 1000 characters"
	MsgFeedbackNoRide  = "Cannot submit feedback: ride or driver information missing for this booking"
	MsgAlreadyRated    = "Feedback already submitted for this booking"
)

// ValidationError reports a request that can never succeed as submitted.
// Its message is safe to return to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
