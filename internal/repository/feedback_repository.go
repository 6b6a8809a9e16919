package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// errDupEntry is MySQL's ER_DUP_ENTRY.
const errDupEntry = 1062

const feedbackColumns = `id, booking_id, ride_id, driver_id, rider_id, rating, comment, created_at`

// FeedbackRepo stores rider ratings of drivers.
type FeedbackRepo struct {
	db *sql.DB
}

// NewFeedbackRepo returns a FeedbackRepo bound to db.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo { return &FeedbackRepo{db: db} }

// Create inserts f.  A second rating for the same booking violates the
// unique key on booking_id and is reported as ErrDuplicate.
func (r *FeedbackRepo) Create(ctx context.Context, f *model.Feedback) error {
	const q = `INSERT INTO feedback (` + feedbackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, f.ID, f.BookingID, f.RideID, f.DriverID, f.RiderID, f.Rating, f.Comment, f.CreatedAt.UTC())
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListByDriver returns the ratings left for driverID, newest first.
func (r *FeedbackRepo) ListByDriver(ctx context.Context, driverID string) ([]model.Feedback, error) {
	const q = `SELECT ` + feedbackColumns + ` FROM feedback WHERE driver_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, driverID)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()
	result := []model.Feedback{}
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.BookingID, &f.RideID, &f.DriverID, &f.RiderID, &f.Rating, &f.Comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
