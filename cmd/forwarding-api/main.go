package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/virtualpost/forwarding-api/api/swagger"
	"github.com/virtualpost/forwarding-api/internal/handler"
	"github.com/virtualpost/forwarding-api/internal/middleware"
	"github.com/virtualpost/forwarding-api/internal/repository"
	"github.com/virtualpost/forwarding-api/internal/service"
	"github.com/virtualpost/forwarding-api/pkg/cache"
	"github.com/virtualpost/forwarding-api/pkg/config"
	"github.com/virtualpost/forwarding-api/pkg/database"
	"github.com/virtualpost/forwarding-api/pkg/export"
	"github.com/virtualpost/forwarding-api/pkg/jobs"
	"github.com/virtualpost/forwarding-api/pkg/logger"
	corsmiddleware "github.com/virtualpost/forwarding-api/pkg/middleware/cors"
	reqidmiddleware "github.com/virtualpost/forwarding-api/pkg/middleware/requestid"
)

// @title Forwarding Operations API
// @version 1.0.0
// @description Back-office lifecycle manager for physical-mail forwarding requests
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis only backs the advisory stats cache; the service runs without it.
	cacheRepo := repository.NewCacheRepository(nil, logr)
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	defer cacheRepo.Close() //nolint:errcheck

	forwardingRepo := repository.NewForwardingRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditWriter := service.NewAuditWriter(auditRepo, logr)
	auditQueue := jobs.New("transition-audit", auditWriter.Handle, jobs.Config{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	})
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()

	metricsSvc := service.NewMetricsService()
	forwardingSvc := service.NewForwardingService(
		forwardingRepo,
		cfg.Forwarding.LockTTL,
		logr,
		service.WithAuditSink(auditQueue),
		service.WithMetrics(metricsSvc),
		service.WithManifestRenderer(export.NewManifestRenderer()),
		service.WithAuditTrail(auditRepo),
	)
	statsSvc := service.NewStatsService(forwardingRepo, cacheRepo, cfg.Forwarding.StatsCacheTTL, logr)

	forwardingHandler := handler.NewForwardingHandler(forwardingSvc, statsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Operator())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/forwarding-requests", forwardingHandler.Create)
		api.GET("/forwarding-requests", forwardingHandler.List)
		api.GET("/forwarding-requests/stats", forwardingHandler.Stats)
		api.GET("/forwarding-requests/:id", forwardingHandler.Get)
		api.POST("/forwarding-requests/:id/transitions", forwardingHandler.Transition)
		api.POST("/forwarding-requests/:id/release-lock", forwardingHandler.ReleaseLock)
		api.GET("/forwarding-requests/:id/manifest", forwardingHandler.Manifest)
		api.GET("/forwarding-requests/:id/audit", forwardingHandler.Audit)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
