package main // Entry point of the rideshare API server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/iliyamo/campus-rideshare/internal/config"
	"github.com/iliyamo/campus-rideshare/internal/database"
	"github.com/iliyamo/campus-rideshare/internal/handler"
	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/queue"
	"github.com/iliyamo/campus-rideshare/internal/repository"
	"github.com/iliyamo/campus-rideshare/internal/router"
	"github.com/iliyamo/campus-rideshare/internal/service"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the environment is read")
	migrate := flags.Bool("migrate", true, "create missing tables on startup")
	_ = flags.Parse(os.Args[1:])

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("dotenv_load_failed", "path", *envFile, "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log, *migrate); err != nil {
		log.Error("server_exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger, migrate bool) error {
	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			return err
		}
	}

	// Redis is optional: without it the cache and limiter pass through and
	// the bus and feed effects are skipped.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis_unavailable", "addr", config.RedisOptions().Addr)
	} else {
		defer rdb.Close()
	}

	jobs := queue.NewDispatcher(cfg.AMQPURL, model.RetryPolicy{Attempts: cfg.NotifyAttempts, Backoff: cfg.NotifyBackoff}, log)
	defer jobs.Close()

	cacheCfg := config.LoadCacheConfig()
	deps := service.Deps{
		Rides:       repository.NewRideRepo(db, cfg.StoreTimeout),
		Bookings:    repository.NewBookingRepo(db),
		Feedback:    repository.NewFeedbackRepo(db),
		Jobs:        jobs,
		Logger:      log,
		TailTimeout: cfg.TailTimeout,
	}
	var feed handler.FeedReader
	if rdb != nil {
		deps.Events = service.NewRedisPublisher(rdb)
		deps.Cache = service.NewCacheGate(cacheCfg, rdb)
		feed = queue.NewFeed(rdb)
	}
	engine := service.NewEngine(deps)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(log))

	rd := router.Deps{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log,
	}
	rides := handler.NewRideHandler(engine, log)
	bookings := handler.NewBookingHandler(engine, cfg.HideBookingExistence, log)
	feedback := handler.NewFeedbackHandler(engine, log)
	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, rides, rd)
	router.RegisterDriver(e, rides, bookings, feedback, rd)
	router.RegisterRider(e, bookings, feedback, rd)
	router.RegisterNotifications(e, &handler.NotificationHandler{Feed: feed, Log: log}, rd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("server_listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	// let in-flight tail effects finish before their clients are closed
	engine.Wait()
	return err
}

// requestLogger logs one access record per request through slog.
func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn("http_request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("http_request", attrs...)
			return nil
		},
	})
}
