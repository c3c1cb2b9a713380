package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/intake-api/internal/config"
	"github.com/ksred/intake-api/internal/database"
	"github.com/ksred/intake-api/internal/dispatch"
	"github.com/ksred/intake-api/internal/gateway"
	"github.com/ksred/intake-api/internal/orders"
	"github.com/ksred/intake-api/internal/relay"
	"github.com/ksred/intake-api/internal/sequencer"
	"github.com/ksred/intake-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the intake gateway with graceful shutdown
// support. It wires the sequencer store, order repository, fan-out
// dispatcher, and execution relay behind the HTTP surface.
func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize services
	store := sequencer.NewStore(db)
	repo := orders.NewRepository(store)

	router := dispatch.NewRouter(cfg.EngineRoutes, cfg.DefaultEngineURL, cfg.PublisherURL)
	client := dispatch.NewClient(cfg.DispatchTimeout)
	dispatcher := dispatch.NewDispatcher(router, client, db)
	pool := dispatch.NewPool(dispatcher, cfg.DispatchWorkers, cfg.DispatchQueueSize)

	relayService := relay.NewService(repo, pool)
	gatewayService := gateway.NewService(repo, pool)
	handlers := gateway.NewGinHandlers(gatewayService, relayService)

	// Start fan-out workers
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	pool.Start(poolCtx)

	// Initialize router
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.RateLimit())

	setupRoutes(engine, handlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures the gateway endpoints:
//   - POST /order: order intake, acknowledged once durably sequenced
//   - POST /order-fill: execution reports from the matching engine
//   - GET /order/:secnum: order state lookup
//   - GET /: liveness probe
//   - GET /metrics: prometheus metrics, including dispatch outcomes
func setupRoutes(engine *gin.Engine, handlers *gateway.GinHandlers) {
	engine.GET("/", handlers.LivenessHandler())
	engine.POST("/order", handlers.SubmitOrderHandler())
	engine.POST("/order-fill", handlers.OrderFillHandler())
	engine.GET("/order/:secnum", handlers.GetOrderHandler())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
