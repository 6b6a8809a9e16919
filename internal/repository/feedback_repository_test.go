package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

func TestFeedbackCreate(t *testing.T) {
	at := time.Date(2030, 1, 3, 9, 0, 0, 0, time.UTC)
	f := &model.Feedback{ID: "fb-1", BookingID: "bk-1", RideID: "ride-1", DriverID: "drv-1",
		RiderID: "rider-1", Rating: 4, Comment: "smooth ride", CreatedAt: at}

	t.Run("inserted", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO feedback`)).
			WithArgs("fb-1", "bk-1", "ride-1", "drv-1", "rider-1", 4, "smooth ride", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		if err := NewFeedbackRepo(db).Create(context.Background(), f); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("second rating for a booking", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO feedback`)).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'bk-1' for key 'uq_feedback_booking'"})
		if err := NewFeedbackRepo(db).Create(context.Background(), f); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("other driver error", func(t *testing.T) {
		db, mock := newMock(t)
		boom := errors.New("connection reset")
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO feedback`)).WillReturnError(boom)
		if err := NewFeedbackRepo(db).Create(context.Background(), f); !errors.Is(err, boom) || errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected wrapped driver error, got %v", err)
		}
	})
}

func TestFeedbackListByDriver(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2030, 1, 3, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "booking_id", "ride_id", "driver_id", "rider_id", "rating", "comment", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM feedback WHERE driver_id = ?`)).WithArgs("drv-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("fb-2", "bk-2", "ride-1", "drv-1", "rider-2", 5, "", at).
			AddRow("fb-1", "bk-1", "ride-1", "drv-1", "rider-1", 3, "late", at.Add(-time.Hour)))

	items, err := NewFeedbackRepo(db).ListByDriver(context.Background(), "drv-1")
	if err != nil {
		t.Fatalf("ListByDriver failed: %v", err)
	}
	if len(items) != 2 || items[0].Rating != 5 || items[1].Comment != "late" {
		t.Errorf("unexpected feedback %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
