package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/repository"
)

// BookingService is the part of the booking engine the booking endpoints
// use.
type BookingService interface {
	BookRide(ctx context.Context, p model.Principal, rideID string, seats int) (*model.Booking, error)
	CancelBooking(ctx context.Context, p model.Principal, bookingID string) (*model.Booking, error)
	CapturePayment(ctx context.Context, p model.Principal, bookingID, transactionID string) (*model.Booking, error)
	ListMyBookings(ctx context.Context, p model.Principal) ([]model.Booking, error)
}

// BookingHandler serves rider bookings and driver payment capture.
// When HideExistence is set, cancelling a booking that does not exist
// answers exactly like cancelling someone else's.
type BookingHandler struct {
	Bookings      BookingService
	HideExistence bool
	Log           *slog.Logger
}

func NewBookingHandler(bookings BookingService, hideExistence bool, log *slog.Logger) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, HideExistence: hideExistence, Log: log}
}

// Book handles POST /v1/rides/:id/bookings with body {"seats": n}.
func (h *BookingHandler) Book(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Seats int `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.Bookings.BookRide(c.Request().Context(), p, c.Param("id"), body.Seats)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	b, err := h.Bookings.CancelBooking(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		if h.HideExistence && errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled", "booking": b})
}

// Mine handles GET /v1/my-bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	bookings, err := h.Bookings.ListMyBookings(c.Request().Context(), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// Capture handles POST /v1/bookings/:id/capture with an optional body
// {"transaction_id": "..."}.
func (h *BookingHandler) Capture(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		TransactionID string `json:"transaction_id"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
	}
	b, err := h.Bookings.CapturePayment(c.Request().Context(), p, c.Param("id"), body.TransactionID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
