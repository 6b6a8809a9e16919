package model

import "time"

// Ride is a driver-published offer of a fixed number of seats between an
// origin and a destination at a given departure time.  AvailableSeats is
// the only mutable counter and always satisfies
// 0 <= AvailableSeats <= Capacity; it is changed exclusively through the
// conditional updates in the ride repository.
//
// Fields:
//  ID             – UUID primary key.
//  DriverID       – identity of the driver who owns the ride.
//  DriverName     – display name shown to riders.
//  DriverContact  – contact string shown to riders.
//  Origin         – pickup location.
//  Destination    – drop-off location.
//  DepartureAt    – departure time in UTC.
//  Capacity       – total seats offered.
//  AvailableSeats – seats not yet booked.
//  PriceCents     – price per seat in cents.
//  CreatedAt      – creation timestamp.
type Ride struct {
	ID             string    `json:"id"`              // rides.id
	DriverID       string    `json:"driver_id"`       // rides.driver_id
	DriverName     string    `json:"driver_name"`     // rides.driver_name
	DriverContact  string    `json:"driver_contact"`  // rides.driver_contact
	Origin         string    `json:"origin"`          // rides.origin
	Destination    string    `json:"destination"`     // rides.destination
	DepartureAt    time.Time `json:"departure_at"`    // rides.departure_at
	Capacity       int       `json:"capacity"`        // rides.capacity
	AvailableSeats int       `json:"available_seats"` // rides.available_seats
	PriceCents     int64     `json:"price_cents"`     // rides.price_cents
	CreatedAt      time.Time `json:"created_at"`      // rides.created_at
}

// RideFields carries the driver-supplied attributes of a new ride.
type RideFields struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureAt   time.Time `json:"departure_at"`
	Capacity      int       `json:"capacity"`
	PriceCents    int64     `json:"price_cents"`
	DriverName    string    `json:"driver_name"`
	DriverContact string    `json:"driver_contact"`
}

// RideWithBookings pairs a ride with the bookings currently held on it.
type RideWithBookings struct {
	Ride     Ride      `json:"ride"`
	Bookings []Booking `json:"bookings"`
}
