package model

import "time"

// Notification job types.
const (
	JobBookingCreated   = "booking.created"
	JobBookingCancelled = "booking.cancelled"
	JobRideCancelled    = "ride.cancelled"
	JobPaymentCaptured  = "payment.captured"
	JobFeedbackReceived = "feedback.received"
)

// NotificationJob is the body of a durable queue message.  Payload is
// opaque to the queue; the worker reads recipient identifiers from the
// "recipients" key when present.
type NotificationJob struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// RetryPolicy bounds how often a job is attempted and how long the worker
// waits between attempts.  The delay before attempt n+1 is
// Backoff * 2^(n-1).
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// JobHandle identifies an enqueued job.
type JobHandle struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
}
