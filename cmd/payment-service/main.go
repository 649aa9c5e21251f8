package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"paynotify-system/internal/api/handlers"
	"paynotify-system/internal/api/middleware"
	"paynotify-system/internal/config"
	"paynotify-system/internal/decoder"
	jwtinfra "paynotify-system/internal/infrastructure/jwt"
	"paynotify-system/internal/infrastructure/mysql"
	"paynotify-system/internal/infrastructure/redis"
	"paynotify-system/internal/services"
	"paynotify-system/pkg/logger"
	"paynotify-system/pkg/metrics"
)

func main() {
	log := logger.New()
	log.Info("Starting Payment Service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	paymentRepo := mysql.NewMySQLPaymentRepository(db)
	auditRepo := mysql.NewMySQLAuditRepository(db)

	// Initialize Redis based components
	directory := redis.NewRedisSellerDirectory(rdb)
	eventPublisher := redis.NewRedisEventPublisher(rdb)

	// Initialize token verifier
	verifier, err := jwtinfra.NewVerifier(cfg.JWT.Secret)
	if err != nil {
		log.Error("Failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	// Initialize services
	dec := decoder.New(cfg.Decoder.FreshnessWindow)
	coordinator := services.NewClaimCoordinator(paymentRepo, auditRepo, directory, eventPublisher, log)
	ingestion := services.NewIngestionService(dec, auditRepo, coordinator, eventPublisher, log)

	metrics.Register()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.LoggerWithConfig(echomiddleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(ingestion, coordinator, log)

	// API routes
	api := e.Group("/api/v1", middleware.BearerAuth(verifier))
	api.POST("/notifications", paymentHandler.ProcessNotification)
	api.POST("/payments/:id/claim", paymentHandler.ClaimPayment)
	api.POST("/payments/:id/reject", paymentHandler.RejectPayment)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "payment-service",
			"timestamp": time.Now().Format(time.RFC3339),
			"port":      cfg.Server.Port,
			"version":   "1.0.0",
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting payment service server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down payment service...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Payment service stopped")
}
