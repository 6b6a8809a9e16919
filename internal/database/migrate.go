package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; every statement is idempotent.
// The CHECK constraint backs up the conditional updates in the ride
// repository: a buggy write that would push available_seats out of range
// fails at the engine instead of corrupting inventory.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rides (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		driver_id       VARCHAR(64)  NOT NULL,
		driver_name     VARCHAR(255) NOT NULL,
		driver_contact  VARCHAR(255) NOT NULL,
		origin          VARCHAR(255) NOT NULL,
		destination     VARCHAR(255) NOT NULL,
		departure_at    DATETIME     NOT NULL,
		capacity        INT          NOT NULL,
		available_seats INT          NOT NULL,
		price_cents     BIGINT       NOT NULL DEFAULT 0,
		created_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_rides_driver (driver_id),
		INDEX idx_rides_departure (departure_at),
		CONSTRAINT chk_rides_seats CHECK (available_seats >= 0 AND available_seats <= capacity)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             CHAR(36)    NOT NULL PRIMARY KEY,
		rider_id       VARCHAR(64) NOT NULL,
		ride_id        CHAR(36)    NOT NULL,
		seats          INT         NOT NULL,
		status         ENUM('pending','confirmed','cancelled') NOT NULL DEFAULT 'pending',
		payment_status ENUM('none','requires_capture','captured','failed') NOT NULL DEFAULT 'none',
		transaction_id VARCHAR(128) NULL,
		booked_at      DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		charged_at     DATETIME    NULL,
		INDEX idx_bookings_ride (ride_id),
		INDEX idx_bookings_rider (rider_id),
		CONSTRAINT chk_bookings_seats CHECK (seats > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id         CHAR(36)      NOT NULL PRIMARY KEY,
		booking_id CHAR(36)      NOT NULL,
		ride_id    CHAR(36)      NOT NULL,
		driver_id  VARCHAR(64)   NOT NULL,
		rider_id   VARCHAR(64)   NOT NULL,
		rating     TINYINT       NOT NULL,
		comment    VARCHAR(1000) NOT NULL DEFAULT '',
		created_at DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_feedback_booking (booking_id),
		INDEX idx_feedback_driver (driver_id),
		CONSTRAINT chk_feedback_rating CHECK (rating BETWEEN 1 AND 5)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the rides, bookings and feedback tables when they do
// not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
