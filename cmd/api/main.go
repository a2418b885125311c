package main

import (
	"log"
	"strings"

	"kopy/internal/api"
	"kopy/internal/config"
	"kopy/internal/database"
	"kopy/internal/events"
	"kopy/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize event publisher (nil when Kafka is not configured)
	var brokers []string
	if cfg.KafkaBrokers != "" {
		brokers = strings.Split(cfg.KafkaBrokers, ",")
	}
	publisher := events.NewPublisher(brokers, cfg.JobEventTopic, logger)
	defer publisher.Close()

	// Initialize API server
	server := api.New(cfg, logger, db, publisher)

	// Start server
	logger.Info("Starting API server on port " + cfg.APIPort)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
