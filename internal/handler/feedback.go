package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// FeedbackService is the part of the booking engine the rating endpoints
// use.
type FeedbackService interface {
	LeaveFeedback(ctx context.Context, p model.Principal, bookingID string, rating int, comment string) (*model.Feedback, error)
	DriverFeedback(ctx context.Context, p model.Principal) ([]model.Feedback, error)
}

// FeedbackHandler serves rider ratings of drivers.
type FeedbackHandler struct {
	Feedback FeedbackService
	Log      *slog.Logger
}

func NewFeedbackHandler(feedback FeedbackService, log *slog.Logger) *FeedbackHandler {
	if feedback == nil {
		panic("nil feedback service passed to NewFeedbackHandler")
	}
	return &FeedbackHandler{Feedback: feedback, Log: log}
}

// Submit handles POST /v1/bookings/:id/feedback with body
// {"rating": 1..5, "comment": "..."}.
func (h *FeedbackHandler) Submit(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	f, err := h.Feedback.LeaveFeedback(c.Request().Context(), p, c.Param("id"), body.Rating, body.Comment)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// Mine handles GET /v1/driver/feedback.
func (h *FeedbackHandler) Mine(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.Feedback.DriverFeedback(c.Request().Context(), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Feedback{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"feedback": items,
		"count":    len(items),
		"average":  model.AverageRating(items),
	})
}
