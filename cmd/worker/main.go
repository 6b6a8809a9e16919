package main // Entry point of the notification worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iliyamo/campus-rideshare/internal/config"
	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/queue"
	"github.com/iliyamo/campus-rideshare/internal/service"
)

func main() {
	flags := pflag.NewFlagSet("worker", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the environment is read")
	logPath := flags.String("log-path", "", "notification record file (overrides NOTIFY_LOG_PATH)")
	_ = flags.Parse(os.Args[1:])

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("dotenv_load_failed", "path", *envFile, "error", err)
		os.Exit(1)
	}
	cfg := config.Base()
	if *logPath != "" {
		cfg.NotifyLogPath = *logPath
	}
	log := config.NewLogger(cfg, os.Stdout).With("component", "worker")
	slog.SetDefault(log)

	notifier := &queue.Notifier{LogPath: cfg.NotifyLogPath, Log: log}
	// without Redis jobs are still recorded; feeds and announcements are skipped
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		notifier.Feed = queue.NewFeed(rdb)
		notifier.Events = service.NewRedisPublisher(rdb)
	} else {
		log.Warn("redis_unavailable", "addr", config.RedisOptions().Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := queue.NewWorker(cfg.AMQPURL, notifier, model.RetryPolicy{Attempts: cfg.NotifyAttempts, Backoff: cfg.NotifyBackoff}, log)
	log.Info("worker_started", "queue", queue.JobsQueue, "log_path", cfg.NotifyLogPath)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker_exit", "error", err)
		os.Exit(1)
	}
	log.Info("worker_stopped")
}
