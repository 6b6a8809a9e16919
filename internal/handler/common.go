package handler // handler defines the HTTP handlers of the rideshare API

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-rideshare/internal/middleware"
	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/repository"
	"github.com/iliyamo/campus-rideshare/internal/service"
)

// principal returns the caller placed in the context by JWTAuth.
func principal(c echo.Context) (model.Principal, bool) {
	return middleware.PrincipalFrom(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// errorResponse maps an engine error to a status code and a message safe
// to show the caller.
func errorResponse(err error) (int, string) {
	var v *service.ValidationError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest, v.Msg
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrInsufficientSeats):
		return http.StatusConflict, service.MsgNotEnoughSeats
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, service.MsgAlreadyRated
	case errors.Is(err, repository.ErrInvalidQuantity):
		return http.StatusBadRequest, service.MsgInvalidSeats
	case errors.Is(err, repository.ErrStoreTimeout):
		return http.StatusServiceUnavailable, "store unavailable, try again"
	case errors.Is(err, repository.ErrCapacityExceeded):
		return http.StatusInternalServerError, "seat inventory inconsistency"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c echo.Context, log *slog.Logger, err error) error {
	status, msg := errorResponse(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request_failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}
