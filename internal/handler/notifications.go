package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-rideshare/internal/queue"
)

// FeedReader reads a user's delivered notifications.
type FeedReader interface {
	Recent(ctx context.Context, userID string) ([]queue.FeedEntry, error)
}

// NotificationHandler serves GET /v1/notifications.  A nil Feed means
// Redis is unavailable and the endpoint answers with an empty list.
type NotificationHandler struct {
	Feed FeedReader
	Log  *slog.Logger
}

func (h *NotificationHandler) List(c echo.Context) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}
	entries := []queue.FeedEntry{}
	if h.Feed != nil {
		got, err := h.Feed.Recent(c.Request().Context(), p.ID)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		entries = got
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": entries})
}
