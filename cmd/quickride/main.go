package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quickride/quickride/internal/chat"
	"github.com/quickride/quickride/internal/dispatch"
	"github.com/quickride/quickride/internal/drivers"
	"github.com/quickride/quickride/internal/passengers"
	"github.com/quickride/quickride/internal/pricing"
	"github.com/quickride/quickride/internal/realtime"
	"github.com/quickride/quickride/internal/rides"
	"github.com/quickride/quickride/internal/routes"
	"github.com/quickride/quickride/pkg/clock"
	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/config"
	"github.com/quickride/quickride/pkg/database"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/logger"
	"github.com/quickride/quickride/pkg/middleware"
	redisclient "github.com/quickride/quickride/pkg/redis"
	"github.com/quickride/quickride/pkg/validation"
	"github.com/quickride/quickride/pkg/websocket"
)

const (
	serviceName = "quickride"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting quickride",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to redis")

	bus, err := eventbus.New(eventbus.Config{
		URL:        cfg.NATS.URL,
		Name:       serviceName,
		StreamName: cfg.NATS.StreamName,
	})
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer bus.Close()
	logger.Info("Connected to NATS")

	hub := websocket.NewHub()
	go hub.Run()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	driversRepo := drivers.NewRepository(db)
	passengersRepo := passengers.NewRepository(db)
	ridesRepo := rides.NewRepository(db)
	chatRepo := chat.NewRepository(db)
	dispatchRepo := dispatch.NewRepository(db)

	// Services.
	locationCache := drivers.NewRedisLocationCache(redisClient, cfg.Dispatch.LocationTTL())
	driversService := drivers.NewService(driversRepo, locationCache)

	routeProvider := routes.NewGoogleProvider(cfg.Routes)
	fareCalc := pricing.NewCalculator(cfg.Fare, clock.Real{})

	ridesService := rides.NewService(
		ridesRepo,
		driversService,
		passengersRepo,
		routeProvider,
		fareCalc,
		hub,
		bus,
		cfg.Dispatch,
	)

	chatService := chat.NewService(chatRepo, ridesRepo, hub)
	if err := chatService.SubscribeLifecycle(rootCtx, bus); err != nil {
		logger.Fatal("Failed to subscribe chat consumers", zap.Error(err))
	}

	dispatchService := dispatch.NewService(dispatchRepo, hub, cfg.Dispatch)
	if err := dispatchService.Subscribe(rootCtx, bus); err != nil {
		logger.Fatal("Failed to subscribe dispatch consumer", zap.Error(err))
	}

	realtimeService := realtime.NewService(hub, driversService, chatService, ridesRepo)
	realtimeService.RegisterHandlers()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validation.RegisterCustomValidators()

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, version))

	healthChecks := map[string]func() error{
		"database": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		},
		"nats": func() error {
			if !bus.Connected() {
				return fmt.Errorf("nats connection lost")
			}
			return nil
		},
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The WebSocket endpoint authenticates per-connection, so it mounts
	// before the identity middleware.
	realtime.NewHandler(hub).RegisterRoutes(router)

	api := router.Group("/api/v1")
	api.Use(middleware.Identity())

	rides.NewHandler(ridesService).RegisterRoutes(api)
	chat.NewHandler(chatService).RegisterRoutes(api)
	drivers.NewHandler(driversService).RegisterRoutes(api)
	passengers.NewHandler(passengersRepo).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	stop()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited")
}
