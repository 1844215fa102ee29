package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"install-pulse-service/internal/config"
	"install-pulse-service/internal/logger"
	"install-pulse-service/internal/repository/postgresql"
	"install-pulse-service/internal/service"
	"install-pulse-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "install-pulse-worker")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("pg connect", zap.Error(err))
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("redis connect", zap.Error(err))
	}

	processingMapKey := cfg.Alerts.ProcessingKey + ":map"
	queue := service.NewRedisStallQueue(
		rdb,
		processingMapKey,
		service.Lane{QueueKey: cfg.Alerts.QueueKey + ":normal", ProcessingKey: cfg.Alerts.ProcessingKey + ":normal"},
		service.Lane{QueueKey: cfg.Alerts.QueueKey + ":high", ProcessingKey: cfg.Alerts.ProcessingKey + ":high"},
	)

	execRepo := postgresql.NewExecutionRepository(pool)
	alertRepo := postgresql.NewAlertRepository(pool)

	// Reaper: returns alerts from processing back to queue if a worker died
	// mid-flight. Keeps delivery at-least-once.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := queue.RequeueStale(ctx, 100)
				if err != nil {
					zlog.Warn("requeue stale", zap.Error(err))
					continue
				}
				if n > 0 {
					zlog.Info("requeued alerts from processing", zap.Int64("count", n))
				}
			}
		}
	}()

	scanner := worker.NewScanner(
		execRepo,
		alertRepo,
		queue,
		zlog,
		cfg.Stall.ThresholdHours,
		time.Duration(cfg.Stall.ScanIntervalSeconds)*time.Second,
	)
	go scanner.Run(ctx)

	processor := worker.NewProcessor(execRepo, alertRepo, zlog, cfg.Stall.ThresholdHours)
	workerPool := worker.NewPool(queue, processor, cfg.Alerts.Workers, zlog)

	zlog.Info("worker started",
		zap.Int("workers", cfg.Alerts.Workers),
		zap.Float64("stall_threshold_hours", cfg.Stall.ThresholdHours),
		zap.Int("scan_interval_seconds", cfg.Stall.ScanIntervalSeconds),
	)
	workerPool.Run(ctx)

	zlog.Info("worker stopped")
}
