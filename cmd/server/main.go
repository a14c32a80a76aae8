package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"budget-bubble-backend/docs"
	"budget-bubble-backend/internal/common/config"
	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/common/middleware"
	currency "budget-bubble-backend/internal/features/currency/models"
	currencysvc "budget-bubble-backend/internal/features/currency/service"
	"budget-bubble-backend/internal/features/document/repository"
	"budget-bubble-backend/internal/features/document/repository/memory"
	pgstore "budget-bubble-backend/internal/features/document/repository/postgres"
	redisstore "budget-bubble-backend/internal/features/document/repository/redis"
	docservice "budget-bubble-backend/internal/features/document/service"
	profilesvc "budget-bubble-backend/internal/features/profile/service"
	sessionhttp "budget-bubble-backend/internal/features/session/delivery/http"
	sessionsvc "budget-bubble-backend/internal/features/session/service"
	"budget-bubble-backend/internal/platform/postgres"
	"budget-bubble-backend/internal/platform/redis"
)

// @title           Budget Bubble API
// @version         1.0
// @description     Savings tracker state sync: goals, transactions, live friend progress and cheers.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey UserID
// @in header
// @name X-User-ID

// @tag.name session
// @tag.description Login and logout of a live session

// @tag.name state
// @tag.description The caller's own profile

// @tag.name categories
// @tag.description Transaction categories

// @tag.name transactions
// @tag.description Credits and debits

// @tag.name friends
// @tag.description Friend progress and cheers

// backend is an open document store plus what is needed to shut it down.
type backend struct {
	store repository.DocumentStore
	ready func(ctx context.Context) error
	close func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("budget-bubble-backend", cfg.Debug)
	logger.Info().
		Bool("debug", cfg.Debug).
		Str("backend", cfg.Documents.Backend).
		Msg("Starting Budget Bubble backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	converter, err := loadConverter(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load currency rates")
	}

	documents, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open document backend")
	}
	defer documents.close()

	registry := sessionsvc.NewRegistry(docservice.NewGateway(documents.store), converter, sessionsvc.Settings{
		PersistQueueSize: cfg.Persist.QueueSize,
		PersistTimeout:   cfg.Persist.Timeout,
		Theme:            profilesvc.LogThemeApplier{},
	})
	defer registry.CloseAll()

	expiration := sessionsvc.NewExpirationService(registry, cfg.Session.IdleTimeout, cfg.Session.SweepInterval)
	expiration.Start()
	defer expiration.Stop()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", middleware.UserIDHeader, "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, registry, documents)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func loadConverter(ctx context.Context, cfg *config.Config) (*currencysvc.Converter, error) {
	canonical, ok := currency.ParseCode(cfg.Currency.Canonical)
	if !ok {
		return nil, fmt.Errorf("unsupported CANONICAL_CURRENCY %q", cfg.Currency.Canonical)
	}
	rates, err := currencysvc.ParseRates(cfg.Currency.Rates)
	if err != nil {
		return nil, err
	}
	return currencysvc.LoadConverter(ctx, canonical, currencysvc.NewStaticSource(rates))
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Documents.Backend {
	case config.BackendRedis:
		client, err := redis.OpenFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := redisstore.NewStore(client.Client, cfg.Redis.KeyPrefix)
		if err := store.Start(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		return &backend{
			store: store,
			ready: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: func() {
				_ = store.Close()
				_ = client.Close()
			},
		}, nil

	case config.BackendPostgres:
		client, err := postgres.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := pgstore.NewStore(client.Pool(), cfg.Postgres.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, err
		}
		if err := store.Start(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return &backend{
			store: store,
			ready: client.HealthCheck,
			close: func() {
				store.Close()
				client.Close()
			},
		}, nil

	default:
		logger.Warn().Msg("Using in-memory documents, data is lost on restart")
		store := memory.New()
		return &backend{
			store: store,
			ready: func(context.Context) error { return nil },
			close: store.Close,
		}, nil
	}
}

func setupRoutes(router *gin.Engine, registry *sessionsvc.Registry, documents *backend) {
	v1 := router.Group("/api/v1")
	sessionhttp.NewSessionHandler(registry).RegisterRoutes(v1)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "budget-bubble-backend",
			"sessions":  len(registry.Users()),
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := documents.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "document backend unavailable",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "budget-bubble-backend",
		})
	})

	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
