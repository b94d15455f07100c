package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // analytics.timezone 不依赖宿主机时区库

	_ "marketplace/internal/domain/analytics"
	_ "marketplace/internal/domain/common"
	_ "marketplace/internal/domain/order"
	"marketplace/internal/pkg/config"
	"marketplace/internal/pkg/middleware"
	"marketplace/internal/pkg/registry"
	"marketplace/internal/pkg/worker"
	"marketplace/pkg/cache"
	"marketplace/pkg/database"
	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.App.Env); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		logger.Log.Fatal("init database", zap.Error(err))
	}
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("init redis", zap.Error(err))
	}

	collector := metrics.NewMetricsCollector()
	if sqlDB, err := db.DB(); err == nil {
		if err := collector.RegisterDBStats(sqlDB, cfg.Database.DBName); err != nil {
			logger.Log.Warn("register db stats", zap.Error(err))
		}
	}

	pool := worker.NewWorkerPool(cfg.Worker.Workers, cfg.Worker.QueueSize, cfg.Worker.MaxRetry,
		worker.WithRecorder(collector))
	pool.Start()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.QPS), cfg.RateLimit.Burst)
	r.Use(
		gin.Recovery(),
		cors.New(cors.Config{
			AllowOrigins:  cfg.CORS.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Authorization", "Content-Type", "X-Trace-ID"},
			ExposeHeaders: []string{"X-Trace-ID"},
			MaxAge:        12 * time.Hour,
		}),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.RateLimitMiddleware(limiter),
		collector.Middleware(),
	)

	ctx := &registry.ModuleContext{
		DB:      db,
		Redis:   rdb,
		Router:  r,
		API:     r.Group("", middleware.AuthMiddleware(cfg.JWT.Secret)),
		Config:  &cfg,
		Metrics: collector,
		Cache:   cache.NewRedisCache(rdb, "marketplace:"+cfg.App.Env+":"),
		Worker:  pool,
	}
	if err := registry.InitModules(ctx); err != nil {
		logger.Log.Fatal("init modules", zap.Error(err))
	}

	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			case <-stopCleanup:
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown", zap.Error(err))
	}
	close(stopCleanup)
	pool.Stop()

	if err := rdb.Close(); err != nil {
		logger.Log.Error("redis close", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Log.Error("db close", zap.Error(err))
		}
	}
	logger.Log.Info("shutdown complete")
}
