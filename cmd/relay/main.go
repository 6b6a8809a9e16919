package main // Entry point of the WebSocket fan-out relay

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
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/iliyamo/campus-rideshare/internal/config"
	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/relay"
)

func main() {
	flags := pflag.NewFlagSet("relay", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the environment is read")
	port := flags.String("port", "", "listen port (overrides RELAY_PORT)")
	_ = flags.Parse(os.Args[1:])

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("dotenv_load_failed", "path", *envFile, "error", err)
		os.Exit(1)
	}
	cfg := config.Base()
	if *port != "" {
		cfg.RelayPort = *port
	}
	log := config.NewLogger(cfg, os.Stdout).With("component", "relay")
	slog.SetDefault(log)

	// the client does not dial here; the subscriber retries until Redis answers
	rdb := redis.NewClient(config.RedisOptions())
	defer rdb.Close()

	hub := relay.NewHub(log)
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	hub.Register(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := relay.NewSubscriber(rdb, hub, model.RelayTopics, log)
	go func() {
		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("subscriber_exit", "error", err)
		}
	}()

	go func() {
		addr := ":" + cfg.RelayPort
		log.Info("relay_listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("relay_exit", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("relay_shutdown_failed", "error", err)
	}
	log.Info("relay_stopped")
}
