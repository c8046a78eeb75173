package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-earnings-api/api/swagger"
	"github.com/noah-isme/sma-earnings-api/internal/dto"
	"github.com/noah-isme/sma-earnings-api/internal/handler"
	"github.com/noah-isme/sma-earnings-api/internal/middleware"
	"github.com/noah-isme/sma-earnings-api/internal/repository"
	"github.com/noah-isme/sma-earnings-api/internal/service"
	"github.com/noah-isme/sma-earnings-api/pkg/cache"
	"github.com/noah-isme/sma-earnings-api/pkg/config"
	"github.com/noah-isme/sma-earnings-api/pkg/database"
	"github.com/noah-isme/sma-earnings-api/pkg/jobs"
	"github.com/noah-isme/sma-earnings-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-earnings-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-earnings-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-earnings-api/pkg/storage"
)

const (
	cacheNamespace  = "earnings"
	shutdownTimeout = 15 * time.Second
)

// @title Controller Earnings API
// @version 1.0.0
// @description Monthly controller earnings, historical comparison and exports.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, earnings cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, cacheNamespace, logr)
	defer cacheRepo.Close() //nolint:errcheck

	location, err := time.LoadLocation(cfg.Earnings.Timezone)
	if err != nil {
		logr.Warn("unknown earnings timezone, using UTC", zap.String("timezone", cfg.Earnings.Timezone), zap.Error(err))
		location = time.UTC
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Earnings.CacheTTL, logr, cacheRepo.Enabled())
	configProvider := service.NewEarningsConfigProvider(
		repository.NewEarningsConfigRepository(db),
		service.DefaultEarningsConfig(cfg.Earnings.Defaults),
		logr,
	)
	earningsSvc := service.NewEarningsService(repository.NewEarningsRepository(db), configProvider, cacheSvc, metrics, logr, service.EarningsServiceConfig{
		CacheTTL:           cfg.Earnings.CacheTTL,
		HistoryConcurrency: cfg.Earnings.HistoryConcurrency,
		QueryTimeout:       cfg.Earnings.QueryTimeout,
		Location:           location,
	})
	validate := dto.NewValidator()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Requester())

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, cacheRepo))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(strings.TrimRight(cfg.APIPrefix, "/"))
	api.GET("/metrics/snapshot", metricsHandler.Snapshot)

	if cfg.Earnings.Enabled {
		earningsHandler := handler.NewEarningsHandler(earningsSvc, validate)
		earnings := api.Group("/earnings")
		earnings.GET("/controllers", earningsHandler.List)
		earnings.GET("/controllers/:controllerId", earningsHandler.Controller)
		earnings.GET("/config", earningsHandler.Config)
		earnings.DELETE("/cache", earningsHandler.InvalidateCache)
	}

	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(earningsSvc, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)

		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, exportSvc, metrics, logr)
		queue = jobs.NewQueue("earnings-exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			DeadLetter: worker.DeadLetter,
			Logger:     logr,
		})
		queue.Start(ctx)

		reportSvc := service.NewReportService(reportRepo, queue, exportSvc, validate, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler := handler.NewReportHandler(reportSvc, logr)
		exports := api.Group("/earnings/exports")
		exports.POST("", reportHandler.GenerateReport)
		exports.GET("", reportHandler.ListJobs)
		exports.GET("/:id", reportHandler.ReportStatus)
		api.GET("/export/:token", reportHandler.DownloadReport)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if cacheRepo.Enabled() {
		checks["redis"] = cacheRepo.Ping
	}
	return checks
}
