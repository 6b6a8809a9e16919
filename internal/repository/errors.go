// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// booking engine and the handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a ride or booking does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrInsufficientSeats is returned by BookSeats when the ride has fewer
// available seats than requested at the moment of the update.
var ErrInsufficientSeats = errors.New("insufficient seats")

// ErrCapacityExceeded is returned by CancelBooking when adding the seats
// back would push available_seats above capacity.  It signals an
// inconsistency (a double release) and is never clamped away.
var ErrCapacityExceeded = errors.New("release would exceed capacity")

// ErrStoreTimeout is returned when a conditional update does not complete
// within its bound.  The update is treated as not applied.
var ErrStoreTimeout = errors.New("store timeout")

// ErrInvalidQuantity is returned when a seat quantity is not positive.
var ErrInvalidQuantity = errors.New("seat quantity must be positive")

// ErrDuplicate is returned when a row that must be unique already exists,
// such as a second rating for one booking.
var ErrDuplicate = errors.New("already exists")
