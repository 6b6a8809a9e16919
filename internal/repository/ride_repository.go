package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// DefaultStoreTimeout bounds a conditional seat update when the caller does
// not configure one.
const DefaultStoreTimeout = 3 * time.Second

const rideColumns = `id, driver_id, driver_name, driver_contact, origin, destination,
	departure_at, capacity, available_seats, price_cents, created_at`

// RideRepo persists rides and owns the only write path to a ride's
// available_seats counter.  Seat changes are single conditional UPDATE
// statements whose WHERE clause carries the precondition, so two
// concurrent reservations can never both succeed against the same seats.
// Each one shares a transaction with the booking row it pays for.
type RideRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRideRepo returns a RideRepo bound to db.  timeout bounds each booking
// or cancellation transaction; a non-positive value selects
// DefaultStoreTimeout.
func NewRideRepo(db *sql.DB, timeout time.Duration) *RideRepo {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &RideRepo{db: db, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(s rowScanner) (*model.Ride, error) {
	var r model.Ride
	err := s.Scan(&r.ID, &r.DriverID, &r.DriverName, &r.DriverContact, &r.Origin, &r.Destination,
		&r.DepartureAt, &r.Capacity, &r.AvailableSeats, &r.PriceCents, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a new ride.  ID, AvailableSeats and CreatedAt must already
// be set by the caller.
func (r *RideRepo) Create(ctx context.Context, ride *model.Ride) error {
	const q = `INSERT INTO rides (` + rideColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		ride.ID, ride.DriverID, ride.DriverName, ride.DriverContact, ride.Origin, ride.Destination,
		ride.DepartureAt.UTC(), ride.Capacity, ride.AvailableSeats, ride.PriceCents, ride.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

// GetByID retrieves a ride by its ID.  It returns ErrNotFound if there is
// no matching row.
func (r *RideRepo) GetByID(ctx context.Context, id string) (*model.Ride, error) {
	const q = `SELECT ` + rideColumns + ` FROM rides WHERE id = ?`
	ride, err := scanRide(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ride: %w", err)
	}
	return ride, nil
}

// ListUpcoming returns rides departing after since, soonest first.
func (r *RideRepo) ListUpcoming(ctx context.Context, since time.Time, limit int) ([]model.Ride, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + rideColumns + ` FROM rides WHERE departure_at > ? ORDER BY departure_at ASC LIMIT ?`
	return r.list(ctx, q, since.UTC(), limit)
}

// ListByDriver returns all rides owned by driverID, soonest first.
func (r *RideRepo) ListByDriver(ctx context.Context, driverID string) ([]model.Ride, error) {
	const q = `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = ? ORDER BY departure_at ASC`
	return r.list(ctx, q, driverID)
}

func (r *RideRepo) list(ctx context.Context, q string, args ...any) ([]model.Ride, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()
	result := []model.Ride{}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		result = append(result, *ride)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const (
	reserveSQL = `UPDATE rides SET available_seats = available_seats - ? WHERE id = ? AND available_seats >= ?`
	releaseSQL = `UPDATE rides SET available_seats = available_seats + ? WHERE id = ? AND available_seats + ? <= capacity`
)

// BookSeats takes b.Seats seats from ride b.RideID and inserts b in one
// transaction.  The decrement is applied only if available_seats >= seats
// at the moment the row is written, and a failed insert rolls it back, so
// seats are never held by a booking that does not exist.  It returns the
// ride as of after the update, ErrNotFound when the ride does not exist
// and ErrInsufficientSeats when the precondition fails.
func (r *RideRepo) BookSeats(ctx context.Context, b *model.Booking) (*model.Ride, error) {
	if b.Seats < 1 {
		return nil, ErrInvalidQuantity
	}
	var ride *model.Ride
	err := r.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		ride, err = adjustSeatsTx(ctx, tx, b.RideID, ErrInsufficientSeats, reserveSQL, b.Seats, b.RideID, b.Seats)
		if err != nil {
			return err
		}
		return insertBookingTx(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// CancelBooking deletes riderID's booking and returns its seats to the
// ride in one transaction.  The ride row is locked before the booking is
// deleted, the same order BookSeats and DeleteWithBookings take, and the
// delete is conditional on the row still being there, so concurrent
// cancels of one booking release its seats once.  If the release fails
// the delete is rolled back with it.
//
// The returned ride is nil when the ride no longer exists; the booking is
// still removed in that case.  ErrNotFound is returned for a missing
// booking, ErrForbidden for another rider's and ErrCapacityExceeded when
// the release would push the ride over capacity.
func (r *RideRepo) CancelBooking(ctx context.Context, bookingID, riderID string) (*model.Booking, *model.Ride, error) {
	var (
		b    *model.Booking
		ride *model.Ride
	)
	err := r.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		b, err = scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("query booking: %w", err)
		}
		if b.RiderID != riderID {
			return ErrForbidden
		}

		var locked string
		err = tx.QueryRowContext(ctx, `SELECT id FROM rides WHERE id = ? FOR UPDATE`, b.RideID).Scan(&locked)
		rideGone := errors.Is(err, sql.ErrNoRows)
		if err != nil && !rideGone {
			return fmt.Errorf("lock ride: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND rider_id = ?`, bookingID, riderID)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			// a concurrent cancel got there first
			return ErrNotFound
		}
		if rideGone {
			return nil
		}
		ride, err = adjustSeatsTx(ctx, tx, b.RideID, ErrCapacityExceeded, releaseSQL, b.Seats, b.RideID, b.Seats)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return b, ride, nil
}

// inTx runs fn in a transaction bounded by the store timeout and commits
// only if fn succeeds.  An error while the deadline has passed is reported
// as ErrStoreTimeout; the transaction is rolled back either way.
func (r *RideRepo) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := runTx(ctx, r.db, fn)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}

func runTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// adjustSeatsTx runs a conditional seat update and reads the row back in
// tx, so the returned ride reflects exactly this update.  Zero affected
// rows is resolved into ErrNotFound or failed.
func adjustSeatsTx(ctx context.Context, tx *sql.Tx, id string, failed error, update string, args ...any) (*model.Ride, error) {
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return nil, fmt.Errorf("update seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	const sel = `SELECT ` + rideColumns + ` FROM rides WHERE id = ?`
	ride, err := scanRide(tx.QueryRowContext(ctx, sel, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read back ride: %w", err)
	}
	if n == 0 {
		return nil, failed
	}
	return ride, nil
}

// DeleteWithBookings removes the ride and every booking that references
// it in one transaction and returns the deleted bookings.  No seats are
// released since the counter is removed with the ride.
func (r *RideRepo) DeleteWithBookings(ctx context.Context, id string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := runTx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		// lock the ride row so bookings cannot be inserted for it mid-delete
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT id FROM rides WHERE id = ? FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock ride: %w", err)
		}

		bookings, err = listBookings(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE ride_id = ? ORDER BY booked_at ASC`, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE ride_id = ?`, id); err != nil {
			return fmt.Errorf("delete bookings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rides WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete ride: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
