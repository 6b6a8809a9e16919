package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

const bookingColumns = `id, rider_id, ride_id, seats, status, payment_status, transaction_id, booked_at, charged_at`

// BookingRepo reads bookings and records payments.  Bookings are created
// and hard deleted by RideRepo, in the same transaction as the seat
// change on their ride.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b         model.Booking
		status    string
		payment   string
		txID      sql.NullString
		chargedAt sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.RiderID, &b.RideID, &b.Seats, &status, &payment, &txID, &b.BookedAt, &chargedAt); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payment)
	if txID.Valid {
		b.TransactionID = &txID.String
	}
	if chargedAt.Valid {
		t := chargedAt.Time
		b.ChargedAt = &t
	}
	return &b, nil
}

func listBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()
	result := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// insertBookingTx inserts b inside tx.  ID and BookedAt must already be
// set.  Bookings are only created by RideRepo.BookSeats, together with the
// seats they hold.
func insertBookingTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, rider_id, ride_id, seats, status, payment_status, booked_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, b.ID, b.RiderID, b.RideID, b.Seats, string(b.Status), string(b.PaymentStatus), b.BookedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID returns the booking with the given id or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query booking: %w", err)
	}
	return b, nil
}

// ListByRider returns the rider's bookings, newest first.
func (r *BookingRepo) ListByRider(ctx context.Context, riderID string) ([]model.Booking, error) {
	return listBookings(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE rider_id = ? ORDER BY booked_at DESC`, riderID)
}

// ListByRide returns the bookings held on a ride, oldest first.
func (r *BookingRepo) ListByRide(ctx context.Context, rideID string) ([]model.Booking, error) {
	return listBookings(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE ride_id = ? ORDER BY booked_at ASC`, rideID)
}

// MarkCaptured records a captured payment and confirms the booking.
func (r *BookingRepo) MarkCaptured(ctx context.Context, id, transactionID string, at time.Time) error {
	const q = `UPDATE bookings SET payment_status = 'captured', status = 'confirmed', transaction_id = ?, charged_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, transactionID, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
