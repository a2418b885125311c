package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kopy/internal/config"
	"kopy/internal/database"
	"kopy/internal/importer"
	"kopy/internal/logger"
	"kopy/internal/shopify"
	"kopy/internal/syncer"
	"kopy/internal/worker"
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

	if cfg.ShopDomain == "" || cfg.ShopAccessToken == "" {
		logger.Fatal("SHOP_DOMAIN and SHOP_ACCESS_TOKEN are required for the worker")
	}

	admin := shopify.NewAdminClient(cfg.ShopDomain, cfg.ShopAccessToken, cfg.AdminAPIVersion, logger)
	fetcher := shopify.NewFetcher(cfg.StorefrontAccessToken, cfg.AdminAPIVersion, admin, logger)

	imp := importer.New(db.DB, fetcher, logger)
	engine := worker.NewEngine(db.DB, imp, logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Periodic price sync for stale products
	sync := syncer.New(db.DB, fetcher, logger)
	go sync.RunAutoSync(ctx, cfg.ShopDomain, time.Duration(cfg.SyncIntervalHours)*time.Hour, admin)

	// Job event consumer
	var consumer *worker.Consumer
	if cfg.KafkaBrokers != "" {
		consumer = worker.NewConsumer(cfg.KafkaBrokers, cfg.JobEventTopic, engine, admin, logger)
		go consumer.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set, job events will not be consumed")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	if consumer != nil {
		consumer.Stop()
	}
}
