package model

import "time"

// Bus topics.  Events carry identifiers only; consumers re-fetch
// authoritative state from the API.
const (
	TopicBookingCreated   = "booking.created"
	TopicRideUpdated      = "ride.updated"
	TopicPaymentCaptured  = "payment.captured"
	TopicNotificationSent = "notification.sent"
)

// RelayTopics is the fixed set of topics the fan-out relay subscribes to.
var RelayTopics = []string{
	TopicBookingCreated,
	TopicRideUpdated,
	TopicPaymentCaptured,
	TopicNotificationSent,
}

// BookingCreatedEvent is published after a booking row is committed.
type BookingCreatedEvent struct {
	BookingID string `json:"bookingId"`
	RideID    string `json:"rideId"`
	RiderID   string `json:"riderId"`
}

// RideUpdatedEvent is published when a ride is created, its availability
// changes through a cancellation, or it is cancelled by its driver.
type RideUpdatedEvent struct {
	RideID         string `json:"rideId"`
	AvailableSeats *int   `json:"availableSeats,omitempty"`
	Cancelled      bool   `json:"cancelled,omitempty"`
}

// PaymentCapturedEvent is published after a booking's payment is recorded
// as captured.
type PaymentCapturedEvent struct {
	BookingID     string `json:"bookingId"`
	RideID        string `json:"rideId"`
	TransactionID string `json:"transactionId"`
}

// NotificationSentEvent is published by the notification worker after a
// job has been executed.
type NotificationSentEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sentAt"`
}
