package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drluca/shopstream/orderservice/config"
	"github.com/drluca/shopstream/orderservice/internal/database"
	"github.com/drluca/shopstream/orderservice/internal/eventbus"
	"github.com/drluca/shopstream/orderservice/internal/httpapi"
	"github.com/drluca/shopstream/orderservice/internal/processor"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level from config
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("appName", cfg.AppName).Msg("Application starting")

	// --- Initializations ---

	// Initialize Database
	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Database")
	}
	defer db.Close()

	// Initialize RabbitMQ Connection Manager
	var bus processor.Publisher
	if !cfg.EventPublishDisabled {
		rmqManager, err := eventbus.NewRabbitMQManager(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ Manager")
		}
		defer rmqManager.Close()
		bus = rmqManager
	}

	// Initialize the order processor and HTTP server
	orders := processor.New(db, bus, cfg)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(orders).Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// --- Wait for shutdown signal ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// --- Graceful Shutdown ---
	log.Info().Msg("Application shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	// Deferred calls to db.Close() and rmqManager.Close() will execute here.
}
