package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/parts-sales-assistant/internal/bootstrap"
	"github.com/kirillkom/parts-sales-assistant/internal/config"
	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           worker.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = worker.Queue.SubscribeNotifications(ctx, func(handlerCtx context.Context, cmd domain.NotificationCommand) error {
		if !cmd.CreatedAt.IsZero() {
			worker.Metrics.ObserveQueueLag(time.Since(cmd.CreatedAt))
		}
		processCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
		defer cancel()

		worker.Metrics.StartNotification()
		start := time.Now()
		receipt, err := worker.Notifications.Process(processCtx, cmd)
		worker.Metrics.FinishNotification(cmd.Kind, receipt, time.Since(start), err)
		if err != nil {
			return err
		}
		slog.Info("notification_processed",
			"notification_id", cmd.ID,
			"conversation_id", cmd.ConversationID,
			"kind", cmd.Kind,
			"status", receipt.Status,
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
