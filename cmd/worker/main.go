// cmd/worker runs the fulfillment pipeline: all five queues, their handlers,
// the cron triggers for the periodic jobs, and the HTTP API. One binary —
// the queues are in-process, so the API has to live next to the workers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/ViniMktd/FlowBot-sub001/internal/api"
	"github.com/ViniMktd/FlowBot-sub001/internal/config"
	"github.com/ViniMktd/FlowBot-sub001/internal/db"
	"github.com/ViniMktd/FlowBot-sub001/internal/dispatch"
	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/messaging"
	"github.com/ViniMktd/FlowBot-sub001/internal/migrate"
	"github.com/ViniMktd/FlowBot-sub001/internal/notify"
	"github.com/ViniMktd/FlowBot-sub001/internal/orders"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
	"github.com/ViniMktd/FlowBot-sub001/internal/store"
	"github.com/ViniMktd/FlowBot-sub001/internal/supplier"
	"github.com/ViniMktd/FlowBot-sub001/internal/tracking"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := pipeline.EnableParentDeathSignal(); err != nil {
		logger.Warn("failed to enable parent-death signal", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.Info("connecting to database", "url", cfg.DatabaseURL)
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to database failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool, logger); err != nil {
		logger.Error("run migrations failed", "err", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("parse redis URL failed", "err", err, "url", cfg.RedisURL)
		os.Exit(1)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("redis connected")

	ordersStore := store.NewOrders(pool)
	notifStore := store.NewNotifications(pool)
	audit := store.NewJobEvents(pool, logger)

	// Handlers must be able to finish their downstream calls inside the
	// drain window, so the pipeline context must not die with the signal.
	p := pipeline.New(context.WithoutCancel(ctx), pipeline.Config{
		Queues: dispatch.Queues(),
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.JobMaxAttempts,
			BaseDelay:   cfg.JobRetryBaseDelay,
		},
		Sink:         pipeline.MultiSink{dispatch.LogSink(logger), audit},
		DrainTimeout: cfg.DrainTimeout,
	})

	metrics := supplier.NewRedisMetrics(rc)
	senders := notify.Registry{
		domain.ChannelPush:  notify.LogSender(logger, domain.ChannelPush),
		domain.ChannelEmail: notify.LogSender(logger, domain.ChannelEmail),
		domain.ChannelSMS:   notify.LogSender(logger, domain.ChannelSMS),
	}

	dispatch.Register(p, dispatch.Services{
		Orders: orders.NewService(ordersStore, p, logger),
		Supplier: supplier.NewService(ordersStore, supplier.NewHTTPChannel(),
			metrics, p, logger),
		Messaging: messaging.NewService(ordersStore,
			messaging.NewWhatsAppGateway(cfg.WhatsAppBaseURL, cfg.WhatsAppToken), p, logger),
		Tracking: tracking.NewService(ordersStore,
			tracking.NewHTTPCarrier(cfg.CarrierBaseURL, cfg.CarrierToken), metrics, p, logger),
		Notify: notify.NewService(notifStore, senders,
			cfg.NotificationBatchSize, cfg.NotificationRetentionDays, logger),
	})

	c := cron.New()
	schedule := func(interval time.Duration, queue, jobType string, payload any) {
		_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
			if _, err := p.Enqueue(queue, jobType, payload); err != nil {
				logger.Warn("periodic enqueue failed",
					"queue", queue, "type", jobType, "err", err)
			}
		})
		if err != nil {
			logger.Error("register cron trigger failed", "type", jobType, "err", err)
			os.Exit(1)
		}
	}
	schedule(cfg.PerformanceMonitorInterval, domain.QueueSupplier,
		domain.JobMonitorSupplierPerformance, domain.MonitorSupplierPerformancePayload{})
	schedule(cfg.OverdueCheckInterval, domain.QueueTracking,
		domain.JobDetectOverdueOrders, struct{}{})
	schedule(cfg.TrackingReportInterval, domain.QueueTracking,
		domain.JobGenerateTrackingReport, struct{}{})
	schedule(cfg.NotificationBatchInterval, domain.QueueNotification,
		domain.JobDeliverBatch, domain.DeliverBatchPayload{})
	schedule(cfg.NotificationCleanupInterval, domain.QueueNotification,
		domain.JobCleanupNotifications, domain.CleanupNotificationsPayload{})
	c.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.NewServer(p, logger).Router(),
	}
	go func() {
		logger.Info("http api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	logger.Info("worker ready", "queues", p.QueueNames())

	<-ctx.Done()
	logger.Info("shutdown signal received; draining")

	// Stop intake first: no new requests, no new cron fires. Then drain.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		logger.Warn("http shutdown incomplete", "err", err)
	}
	<-c.Stop().Done()

	if err := p.Shutdown(context.Background()); err != nil {
		logger.Warn("drain incomplete; in-flight jobs abandoned", "err", err)
	}
	logger.Info("shutdown complete")
}
