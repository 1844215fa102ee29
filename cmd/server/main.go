package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	_ "install-pulse-service/docs"
	"install-pulse-service/internal/config"
	"install-pulse-service/internal/logger"
	"install-pulse-service/internal/repository/postgresql"
	"install-pulse-service/internal/service"
	transport "install-pulse-service/internal/transport/http"
)

// @title Install Pulse API
// @version 1.0
// @description Field installation tracking: check-in/check-out with evidence, pause ledger, productivity reports.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "install-pulse-server")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("pg connect", zap.Error(err))
	}
	defer pool.Close()

	// reports run on database/sql over the same pgx pool
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	execRepo := postgresql.NewExecutionRepository(pool)
	jobRepo := postgresql.NewJobRepository(pool)
	reportRepo := postgresql.NewReportRepository(sqlDB)

	execSvc := service.NewExecutionService(execRepo, jobRepo, zlog)
	reportSvc := service.NewReportService(reportRepo, zlog)

	h := transport.NewHandler(execSvc, reportSvc, cfg.Stall.ThresholdHours)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      transport.Routes(h, zlog),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		zlog.Info("http server started",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("postgres_dsn", redactDSN(cfg.PostgresDSN)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http serve", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
	zlog.Info("server stopped")
}

func redactDSN(dsn string) string {
	// user:pass@ -> user:****@, keeps DSNs without a password intact
	re := regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)
	return re.ReplaceAllString(dsn, `://$1:****@`)
}
