package main

import (
	"context"
	_ "lancepay/docs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lancepay/internal/config"
	"lancepay/internal/currency"
	"lancepay/internal/db"
	"lancepay/internal/events"
	"lancepay/internal/logger"
	"lancepay/internal/server"
)

// @title LancePay API
// @version 1.0
// @description Wallet, transfer and deposit API for the LancePay freelance marketplace.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {

	logger.Init()
	logger.Info("Starting LancePay application")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	bus := events.NewRedisPublisher(cfg.RedisAddr)
	defer bus.Close()

	rates := currency.New(cfg.RateAPIURL, cfg.RedisAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rates.Start(ctx)
	logger.Info("Exchange rate service started")

	srv := server.New(database, cfg, rates, bus)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
