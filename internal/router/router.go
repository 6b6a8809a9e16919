package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/campus-rideshare/internal/config"
	"github.com/iliyamo/campus-rideshare/internal/handler"
	"github.com/iliyamo/campus-rideshare/internal/middleware"
	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/service"
)

// Deps carries what the route groups need beyond their handlers.  Redis
// may be nil, in which case caching and rate limiting are pass-throughs.
type Deps struct {
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *slog.Logger
}

// RegisterRoutes registers routes that do not require authentication and
// carry no domain data.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers the cached ride listing.  Responses are stored
// under the listings cache group, which the booking engine invalidates on
// every seat change.
func RegisterPublic(e *echo.Echo, rides *handler.RideHandler, d Deps) {
	g := e.Group("/v1", middleware.NewRedisCache(d.Cache, d.Redis, service.ListingsGroup, d.Log))
	g.GET("/rides", rides.List)
	g.GET("/rides/:id", rides.Get)
}

// RegisterDriver registers the endpoints available to the driver role.
func RegisterDriver(e *echo.Echo, rides *handler.RideHandler, bookings *handler.BookingHandler, feedback *handler.FeedbackHandler, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(model.RoleDriver))
	g.POST("/rides", rides.Create)
	g.DELETE("/rides/:id", rides.Cancel)
	g.GET("/driver/rides", rides.Mine)
	g.POST("/bookings/:id/capture", bookings.Capture)
	g.GET("/driver/feedback", feedback.Mine)
}

// RegisterRider registers the endpoints available to the rider role.
// Booking creation is rate limited per rider.
func RegisterRider(e *echo.Echo, bookings *handler.BookingHandler, feedback *handler.FeedbackHandler, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(model.RoleRider))
	g.POST("/rides/:id/bookings", bookings.Book, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))
	g.DELETE("/bookings/:id", bookings.Cancel)
	g.GET("/my-bookings", bookings.Mine)
	g.POST("/bookings/:id/feedback", feedback.Submit)
}

// RegisterNotifications registers the notification feed for any
// authenticated caller.
func RegisterNotifications(e *echo.Echo, n *handler.NotificationHandler, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(model.RoleDriver, model.RoleRider))
	g.GET("/notifications", n.List)
}
