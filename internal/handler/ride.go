package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// RideService is the part of the booking engine the ride endpoints use.
type RideService interface {
	ListRides(ctx context.Context) ([]model.Ride, error)
	GetRide(ctx context.Context, id string) (*model.Ride, error)
	CreateRide(ctx context.Context, p model.Principal, f model.RideFields) (*model.Ride, error)
	CancelRide(ctx context.Context, p model.Principal, rideID string) ([]model.Booking, error)
	DriverRides(ctx context.Context, p model.Principal) ([]model.RideWithBookings, error)
}

// RideHandler serves the public ride listing and the driver endpoints.
type RideHandler struct {
	Rides RideService
	Log   *slog.Logger
}

func NewRideHandler(rides RideService, log *slog.Logger) *RideHandler {
	if rides == nil {
		panic("nil ride service passed to NewRideHandler")
	}
	return &RideHandler{Rides: rides, Log: log}
}

// List handles GET /v1/rides.
func (h *RideHandler) List(c echo.Context) error {
	rides, err := h.Rides.ListRides(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if rides == nil {
		rides = []model.Ride{}
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": rides})
}

// Get handles GET /v1/rides/:id.
func (h *RideHandler) Get(c echo.Context) error {
	ride, err := h.Rides.GetRide(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ride)
}

// Create handles POST /v1/rides.  The body carries the RideFields with
// departure_at in RFC 3339.
func (h *RideHandler) Create(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var f model.RideFields
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ride, err := h.Rides.CreateRide(c.Request().Context(), p, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ride)
}

// Cancel handles DELETE /v1/rides/:id.
func (h *RideHandler) Cancel(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	removed, err := h.Rides.CancelRide(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ride cancelled", "bookings_removed": len(removed)})
}

// Mine handles GET /v1/driver/rides: the caller's rides with the
// bookings held on each.
func (h *RideHandler) Mine(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	rides, err := h.Rides.DriverRides(c.Request().Context(), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if rides == nil {
		rides = []model.RideWithBookings{}
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": rides})
}
