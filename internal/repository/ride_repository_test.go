package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

var rideCols = []string{"id", "driver_id", "driver_name", "driver_contact", "origin", "destination",
	"departure_at", "capacity", "available_seats", "price_cents", "created_at"}

var bookingCols = []string{"id", "rider_id", "ride_id", "seats", "status", "payment_status", "transaction_id", "booked_at", "charged_at"}

var booked = time.Date(2029, 12, 1, 10, 0, 0, 0, time.UTC)

const (
	selectRide    = `FROM rides WHERE id = ?`
	lockRide      = `SELECT id FROM rides WHERE id = ? FOR UPDATE`
	selectBooking = `FROM bookings WHERE id = ?`
	deleteBooking = `DELETE FROM bookings WHERE id = ? AND rider_id = ?`
	insertBooking = `INSERT INTO bookings`
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func rideRow(id string, capacity, available int) *sqlmock.Rows {
	dep := time.Date(2030, 1, 2, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(rideCols).AddRow(id, "drv-1", "Dana", "555-0100", "Campus Center", "Airport",
		dep, capacity, available, 1500, dep.Add(-48*time.Hour))
}

func pendingBooking(id, rideID string, seats int) *model.Booking {
	return &model.Booking{ID: id, RiderID: "rider-1", RideID: rideID, Seats: seats,
		Status: model.BookingPending, PaymentStatus: model.PaymentNone, BookedAt: booked}
}

func bookingRow(id, riderID, rideID string, seats int) *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).AddRow(id, riderID, rideID, seats, "pending", "none", nil, booked, nil)
}

func TestBookSeats_Success(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).WithArgs(2, "ride-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectRide)).WithArgs("ride-1").WillReturnRows(rideRow("ride-1", 3, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertBooking)).
		WithArgs("bk-1", "rider-1", "ride-1", 2, "pending", "none", booked).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ride, err := repo.BookSeats(context.Background(), pendingBooking("bk-1", "ride-1", 2))
	if err != nil {
		t.Fatalf("BookSeats failed: %v", err)
	}
	if ride.AvailableSeats != 1 {
		t.Errorf("expected 1 seat left, got %d", ride.AvailableSeats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBookSeats_InsufficientSeats(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).WithArgs(5, "ride-1", 5).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectRide)).WithArgs("ride-1").WillReturnRows(rideRow("ride-1", 3, 3))
	mock.ExpectRollback()

	_, err := repo.BookSeats(context.Background(), pendingBooking("bk-1", "ride-1", 5))
	if !errors.Is(err, ErrInsufficientSeats) {
		t.Fatalf("expected ErrInsufficientSeats, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBookSeats_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).WithArgs(1, "ghost", 1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectRide)).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(rideCols))
	mock.ExpectRollback()

	_, err := repo.BookSeats(context.Background(), pendingBooking("bk-1", "ghost", 1))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBookSeats_FailedInsertRollsBackReservation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)
	boom := errors.New("duplicate entry")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).WithArgs(2, "ride-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectRide)).WithArgs("ride-1").WillReturnRows(rideRow("ride-1", 3, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertBooking)).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.BookSeats(context.Background(), pendingBooking("bk-1", "ride-1", 2))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped insert error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBookSeats_RejectsNonPositiveQuantity(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	for _, q := range []int{0, -2} {
		if _, err := repo.BookSeats(context.Background(), pendingBooking("bk-1", "ride-1", q)); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("qty %d: expected ErrInvalidQuantity, got %v", q, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBookSeats_TimeoutIsFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, 20*time.Millisecond)

	mock.ExpectBegin().WillDelayFor(time.Second)

	_, err := repo.BookSeats(context.Background(), pendingBooking("bk-1", "ride-1", 1))
	if !errors.Is(err, ErrStoreTimeout) {
		t.Fatalf("expected ErrStoreTimeout, got %v", err)
	}
}

// expectCancelPrefix queues the statements CancelBooking runs before the
// seat release: booking read, ride lock and the conditional delete.
func expectCancelPrefix(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectBooking)).WithArgs("bk-1").
		WillReturnRows(bookingRow("bk-1", "rider-1", "ride-1", 2))
	mock.ExpectQuery(regexp.QuoteMeta(lockRide)).WithArgs("ride-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ride-1"))
	mock.ExpectExec(regexp.QuoteMeta(deleteBooking)).WithArgs("bk-1", "rider-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCancelBooking_Success(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	expectCancelPrefix(mock)
	mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).WithArgs(2, "ride-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectRide)).WithArgs("ride-1").WillReturnRows(rideRow("ride-1", 3, 3))
	mock.ExpectCommit()

	b, ride, err := repo.CancelBooking(context.Background(), "bk-1", "rider-1")
	if err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}
	if b.Seats != 2 || ride == nil || ride.AvailableSeats != 3 {
		t.Errorf("unexpected result booking %+v ride %+v", b, ride)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCancelBooking_FailedReleaseRollsBackDelete(t *testing.T) {
	t.Run("release error", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRideRepo(db, time.Second)
		boom := errors.New("lock wait timeout exceeded")

		expectCancelPrefix(mock)
		mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).WithArgs(2, "ride-1", 2).WillReturnError(boom)
		mock.ExpectRollback()

		if _, _, err := repo.CancelBooking(context.Background(), "bk-1", "rider-1"); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped release error, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("over capacity", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRideRepo(db, time.Second)

		expectCancelPrefix(mock)
		mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).WithArgs(2, "ride-1", 2).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(selectRide)).WithArgs("ride-1").WillReturnRows(rideRow("ride-1", 3, 3))
		mock.ExpectRollback()

		if _, _, err := repo.CancelBooking(context.Background(), "bk-1", "rider-1"); !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewRideRepo(db, 20*time.Millisecond)

		expectCancelPrefix(mock)
		mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).WithArgs(2, "ride-1", 2).
			WillDelayFor(time.Second).WillReturnResult(sqlmock.NewResult(0, 1))

		if _, _, err := repo.CancelBooking(context.Background(), "bk-1", "rider-1"); !errors.Is(err, ErrStoreTimeout) {
			t.Fatalf("expected ErrStoreTimeout, got %v", err)
		}
	})
}

func TestCancelBooking_RideGone(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectBooking)).WithArgs("bk-1").
		WillReturnRows(bookingRow("bk-1", "rider-1", "ride-1", 2))
	mock.ExpectQuery(regexp.QuoteMeta(lockRide)).WithArgs("ride-1").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta(deleteBooking)).WithArgs("bk-1", "rider-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, ride, err := repo.CancelBooking(context.Background(), "bk-1", "rider-1")
	if err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}
	if b == nil || ride != nil {
		t.Errorf("expected booking and no ride, got %+v / %+v", b, ride)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCancelBooking_Rejections(t *testing.T) {
	t.Run("missing booking", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectBooking)).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(bookingCols))
		mock.ExpectRollback()

		if _, _, err := NewRideRepo(db, time.Second).CancelBooking(context.Background(), "ghost", "rider-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("someone else's booking", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectBooking)).WithArgs("bk-1").
			WillReturnRows(bookingRow("bk-1", "rider-1", "ride-1", 2))
		mock.ExpectRollback()

		if _, _, err := NewRideRepo(db, time.Second).CancelBooking(context.Background(), "bk-1", "rider-2"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("concurrent cancel won", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectBooking)).WithArgs("bk-1").
			WillReturnRows(bookingRow("bk-1", "rider-1", "ride-1", 2))
		mock.ExpectQuery(regexp.QuoteMeta(lockRide)).WithArgs("ride-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ride-1"))
		mock.ExpectExec(regexp.QuoteMeta(deleteBooking)).WithArgs("bk-1", "rider-1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		if _, _, err := NewRideRepo(db, time.Second).CancelBooking(context.Background(), "bk-1", "rider-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestDeleteWithBookings(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockRide)).WithArgs("ride-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ride-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE ride_id = ?`)).WithArgs("ride-1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("bk-1", "rider-1", "ride-1", 2, "pending", "none", nil, booked, nil).
			AddRow("bk-2", "rider-2", "ride-1", 1, "confirmed", "captured", "SIM-1", booked, booked))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookings WHERE ride_id = ?`)).WithArgs("ride-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM rides WHERE id = ?`)).WithArgs("ride-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.DeleteWithBookings(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("DeleteWithBookings failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted bookings, got %d", len(deleted))
	}
	if deleted[1].TransactionID == nil || *deleted[1].TransactionID != "SIM-1" {
		t.Errorf("expected transaction id SIM-1, got %v", deleted[1].TransactionID)
	}
	if deleted[0].ChargedAt != nil {
		t.Error("expected nil charged_at for uncaptured booking")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteWithBookings_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepo(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockRide)).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	if _, err := repo.DeleteWithBookings(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
