package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/handlers"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/pipeline"
	"github.com/username/tradejournal/backend/src/processors"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

const (
	serviceName    = "tradejournal-backend"
	serviceVersion = "0.1.0"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel, config.Cfg.LogFormat)

	if err := config.Cfg.Validate(); err != nil {
		logger.L.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Trade journal backend server starting...")

	if err := logger.InitTracing(serviceName, serviceVersion, config.Cfg.TracingEnabled); err != nil {
		logger.L.Error("Failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logger.Shutdown(ctx); err != nil {
			logger.L.Error("Failed to shut down tracing", "error", err)
		}
	}()

	registry, err := brokers.NewRegistryFromFile(config.Cfg.BrokerAliasesPath)
	if err != nil {
		logger.L.Error("Failed to load broker aliases", "path", config.Cfg.BrokerAliasesPath, "error", err)
		os.Exit(1)
	}
	logger.L.Info("Broker registry loaded", "brokers", len(registry.Profiles()))

	// Validate has already checked both values.
	policy, _ := utils.ParseFallbackPolicy(config.Cfg.DateFallbackPolicy)
	defaultFormat, _ := utils.ParseDateFormat(config.Cfg.DefaultDateFormat)

	importPipeline := pipeline.New(registry,
		pipeline.WithFallbackPolicy(policy),
		pipeline.WithDefaultDateFormat(defaultFormat),
	)

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	if err := database.RunMigrations(database.DB); err != nil {
		stdlog.Fatalf("%v", err)
	}

	reportCache := cache.New(config.Cfg.CacheExpiration, services.CacheCleanupInterval)
	importService := services.NewImportService(importPipeline, database.DB, processors.NewSummaryProcessor(), reportCache)

	router := handlers.NewRouter(importService, handlers.RouterConfig{
		MaxUploadBytes: config.Cfg.MaxUploadSizeBytes,
		AllowedOrigins: config.Cfg.AllowedOrigins,
		Limiter:        rate.NewLimiter(rate.Limit(config.Cfg.RateLimitRPS), config.Cfg.RateLimitBurst),
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.L.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("Server shutdown failed", "error", err)
	}
	if err := database.DB.Close(); err != nil {
		logger.L.Error("Failed to close database", "error", err)
	}
}
