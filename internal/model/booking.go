package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// PaymentStatus records how far payment for a booking has progressed.  Only
// the status field is tracked; no payment capture logic lives here.
type PaymentStatus string

const (
	PaymentNone            PaymentStatus = "none"
	PaymentRequiresCapture PaymentStatus = "requires_capture"
	PaymentCaptured        PaymentStatus = "captured"
	PaymentFailed          PaymentStatus = "failed"
)

// Booking is a rider's claim on Seats seats of one ride.  The quantity was
// checked against the ride's available seats when the booking was created
// and is never re-validated afterwards.
//
// Fields:
//  ID            – UUID primary key.
//  RiderID       – identity of the rider.
//  RideID        – ride being booked (reference only).
//  Seats         – number of seats held.
//  Status        – pending, confirmed or cancelled.
//  PaymentStatus – none, requires_capture, captured or failed.
//  TransactionID – external payment reference, if captured.
//  BookedAt      – creation timestamp.
//  ChargedAt     – capture timestamp, if captured.
type Booking struct {
	ID            string        `json:"id"`                       // bookings.id
	RiderID       string        `json:"rider_id"`                 // bookings.rider_id
	RideID        string        `json:"ride_id"`                  // bookings.ride_id
	Seats         int           `json:"seats"`                    // bookings.seats
	Status        BookingStatus `json:"status"`                   // bookings.status
	PaymentStatus PaymentStatus `json:"payment_status"`           // bookings.payment_status
	TransactionID *string       `json:"transaction_id,omitempty"` // bookings.transaction_id (nullable)
	BookedAt      time.Time     `json:"booked_at"`                // bookings.booked_at
	ChargedAt     *time.Time    `json:"charged_at,omitempty"`     // bookings.charged_at (nullable)
}
