package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"canopy/internal/api"
	"canopy/internal/bridge"
	"canopy/internal/config"
	"canopy/internal/engine"
	"canopy/internal/job"
	"canopy/internal/postgres"
	"canopy/internal/protected"
	"canopy/internal/redis"
	"canopy/internal/worker"
)

func main() {
	setupLogging()

	cfg, err := loadConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.EngineUrl == "" {
		log.Fatalf("ENGINE_URL is required")
	}

	initializeDatabaseAndCache(cfg)
	defer closeConnections()

	setupSignalHandler()

	runner, registry := initializeServices(cfg)

	worker.StartAllWorkers(cfg.OutputDir)

	runAPIServer(cfg, runner, registry)
}

func setupLogging() {
	// Set up logging to file and terminal
	logFile, err := os.OpenFile("canopy.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	// Note: We're not closing the file here since it needs to stay open
	// for the entire application lifetime. This is a minor resource leak
	// but acceptable for this use case.

	// Use MultiWriter to output logs to both terminal and file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
}

func loadConfiguration() (config.Config, error) {
	// Try loading from config package first
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback to loading from .env file directly
		log.Println("Failed to load config via config package, using fallback method")

		// Using environment file as fallback
		cfg.Port = getEnvWithDefault("PORT", ":8080")
		cfg.EngineUrl = getEnvWithDefault("ENGINE_URL", "")
		cfg.DBUrl = getEnvWithDefault("DB_URL", "")
		cfg.RedisUrl = getEnvWithDefault("REDIS_URL", "")
		cfg.OutputDir = getEnvWithDefault("OUTPUT_DIR", "./output")
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	value := viper.GetString(key)
	if value == "" {
		log.Printf("%s environment variable is not set, using default", key)
		return defaultValue
	}
	return value
}

func initializeDatabaseAndCache(cfg config.Config) {
	// Both stores are optional. Without PostgreSQL runs are kept in memory
	// only, without Redis statistics are recomputed every time.
	if cfg.DBUrl != "" {
		postgres.Init(cfg.DBUrl)
	} else {
		log.Println("DB_URL not set, runs will not be persisted")
	}

	if cfg.RedisUrl != "" {
		redis.Init(cfg.RedisUrl)
	} else {
		log.Println("REDIS_URL not set, statistics caching disabled")
	}
}

func initializeServices(cfg config.Config) (*job.Runner, *job.Registry) {
	store := protected.GetStore()
	if cfg.DBUrl != "" {
		if err := store.InitStore(context.Background()); err != nil {
			log.Fatalf("Failed to initialize protected area store: %v", err)
		}
	} else {
		log.Println("No database configured, protected areas resolved by the engine registry")
	}

	eng := engine.NewClient(cfg.EngineUrl, time.Duration(cfg.EngineTimeout)*time.Second, store)

	br, err := bridge.New(128)
	if err != nil {
		log.Fatalf("Failed to initialize geometry bridge: %v", err)
	}

	registry := job.NewRegistry()
	runner := job.NewRunner(eng, br, registry)

	return runner, registry
}

func runAPIServer(cfg config.Config, runner *job.Runner, registry *job.Registry) {
	// Initialize Gin router
	r := gin.Default()

	// Configure API routes
	api.SetupRouter(r, runner, registry, cfg)

	// Start the server
	r.Run(cfg.Port)
}

func closeConnections() {
	if err := postgres.Close(); err != nil {
		log.Printf("Error closing PostgreSQL connection: %v", err)
	}

	if err := redis.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}

	log.Println("PostgreSQL and Redis connections closed successfully")
}

func setupSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutdown signal received, closing connections...")
		closeConnections()
		os.Exit(0)
	}()
}
