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
	"github.com/gorilla/mux"

	"paynotify-system/internal/api/middleware"
	"paynotify-system/internal/config"
	jwtinfra "paynotify-system/internal/infrastructure/jwt"
	"paynotify-system/internal/infrastructure/mysql"
	"paynotify-system/internal/infrastructure/redis"
	"paynotify-system/internal/infrastructure/websocket"
	"paynotify-system/internal/services"
	"paynotify-system/pkg/logger"
	"paynotify-system/pkg/metrics"
)

func main() {
	log := logger.New()
	log.Info("Starting Push Service")

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

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	paymentRepo := mysql.NewMySQLPaymentRepository(db)
	auditRepo := mysql.NewMySQLAuditRepository(db)

	// Initialize Redis services
	directory := redis.NewRedisSellerDirectory(rdb)
	eventPublisher := redis.NewRedisEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)

	// Initialize token verifier
	verifier, err := jwtinfra.NewVerifier(cfg.JWT.Secret)
	if err != nil {
		log.Error("Failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	// Initialize connection registry and broadcast gateway
	registry := websocket.NewConnectionRegistry(log)
	gateway := services.NewBroadcastGateway(directory, registry, log)

	// Initialize claim coordinator (claims can arrive over the socket too)
	coordinator := services.NewClaimCoordinator(paymentRepo, auditRepo, directory, eventPublisher, log)

	// Initialize event listener and registry sweeper
	eventListener := services.NewEventListener(gateway, log)
	sweeper := services.NewRegistrySweeper(registry, log)

	metrics.Register()

	// Initialize handlers
	wsHandler := websocket.NewWebSocketHandler(coordinator, verifier, registry, log)

	// Setup routes
	router := mux.NewRouter()
	router.Use(middleware.CORS)

	// WebSocket routes
	router.HandleFunc("/ws/sellers/{sellerID}", wsHandler.HandleConnection)

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Start background services
	listenerCtx, stopListener := context.WithCancel(context.Background())
	go func() {
		err := eventListener.Start(listenerCtx, eventSubscriber)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	if err := sweeper.Start(); err != nil {
		log.Error("Failed to start registry sweeper", "error", err)
		os.Exit(1)
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting push service", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down push service...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopListener()
	sweeper.Stop()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Push service stopped")
}
