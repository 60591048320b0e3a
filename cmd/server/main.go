package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"notify-hub.backend/internal/app"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/infrastructure/datasources/postgres"
	"notify-hub.backend/internal/interfaces/http/handlers"
	"notify-hub.backend/internal/interfaces/http/middleware"
	"notify-hub.backend/pkg/jwt"
	"notify-hub.backend/pkg/logger"
	"notify-hub.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	openSQL    = postgres.NewConnection
	openGorm   = postgres.OpenGorm
	openRedis  = redis.Open
	runServer  = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sqlDB, err := openSQL(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer sqlDB.Close()

	db, err := openGorm(sqlDB)
	if err != nil {
		return fmt.Errorf("failed to initialize gorm: %w", err)
	}
	logger.Info(ctx, "Connected to PostgreSQL via GORM")

	store := connectRedis(ctx, cfg.Redis)

	c := app.New(ctx, cfg, db, store)
	logger.Info(ctx, "Email provider selected", zap.String("provider", c.Dispatcher.ProviderName()))

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.Sweep.Start(jobCtx)
	go c.Cache.RunJanitor(jobCtx, cfg.Cache.LocalMaxTTL)

	r := newRouter(routeDeps{
		notificationHandler: handlers.NewNotificationHandler(c.Notifications),
		tokenHandler:        handlers.NewTokenHandler(c.Tokens),
		templateHandler:     handlers.NewTemplateHandler(c.Templates),
		suppressionHandler:  handlers.NewSuppressionHandler(c.Suppressions),
		adminHandler:        handlers.NewAdminHandler(c.Notifications, c.Sweep),
		authMiddleware:      middleware.AuthMiddleware(jwtService),
		ping:                pinger(sqlDB),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")
		c.Sweep.Stop()
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Notify hub starting", zap.String("port", cfg.Server.Port))
	if err := runServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// connectRedis returns nil when Redis is disabled or unreachable; the cache then
// runs local-only and the sweep runs without the cross-replica lock.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Store {
	if !cfg.Enabled {
		logger.Info(ctx, "Redis disabled")
		return nil
	}
	client, err := openRedis(cfg.URL, cfg.Password)
	if err != nil {
		logger.Warn(ctx, "Redis unavailable, continuing without shared cache", zap.Error(err))
		return nil
	}
	logger.Info(ctx, "Redis initialized")
	return redis.NewStore(client, cfg.OpTimeout)
}

func pinger(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
