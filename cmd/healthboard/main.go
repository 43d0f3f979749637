package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/healthboard/healthboard/internal/cache"
	"github.com/healthboard/healthboard/internal/config"
	"github.com/healthboard/healthboard/internal/database"
	"github.com/healthboard/healthboard/internal/handlers"
	"github.com/healthboard/healthboard/internal/jira"
	"github.com/healthboard/healthboard/internal/middleware"
	"github.com/healthboard/healthboard/internal/services"
	slacknotify "github.com/healthboard/healthboard/internal/slack"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Health Alert Dashboard...")

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Seed demo alerts when a seed file is configured and the table is empty
	if cfg.SeedFile != "" {
		n, err := database.SeedFromFile(db, cfg.SeedFile)
		if err != nil {
			log.Printf("Warning: Failed to seed alerts from %s: %v", cfg.SeedFile, err)
		} else if n > 0 {
			log.Printf("Seeded %d alerts from %s", n, cfg.SeedFile)
		}
	}

	store := database.NewAlertStore(db)

	// Initialize AI categorizer
	categorizer := services.NewCategorizer(cfg)
	if cfg.InferenceAPIKey == "" {
		log.Printf("Inference API key not set, categorization will use fallback values")
	} else {
		log.Printf("AI categorizer initialized with model %s", cfg.InferenceModelID)
	}

	// Initialize insights service with its TTL cache
	insights := services.NewInsightsService(cfg, cache.New(15*time.Minute))
	log.Printf("Insights service initialized")

	// Initialize Jira client
	jiraClient := jira.NewClient(cfg)
	if jiraClient.IsConfigured() {
		log.Printf("Jira integration enabled for project %s", cfg.JiraProjectKey)
	} else {
		log.Printf("Jira integration is DISABLED (set JIRA_DOMAIN, JIRA_EMAIL, JIRA_API_TOKEN)")
	}

	// Initialize Slack notifier
	notifier := slacknotify.NewNotifier(cfg.SlackAPIKey, cfg.SlackAlertsChannel)
	if notifier.IsConfigured() {
		log.Printf("Slack notifications enabled for channel %s", cfg.SlackAlertsChannel)
	} else {
		log.Printf("Slack notifications are DISABLED (set SLACK_API_KEY)")
	}

	healthService := services.NewHealthService(store, categorizer, jiraClient, notifier, cfg.AppHost)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	apiHandler := handlers.NewAPIHandler(healthService, insights)
	apiHandler.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := corsMiddleware.Wrap(middleware.RequestIDMiddleware(mux))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if err := database.Close(db); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
