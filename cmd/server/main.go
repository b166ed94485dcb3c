package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/api"
	"github.com/AzizElGhezal/NRIS/internal/config"
	"github.com/AzizElGhezal/NRIS/internal/database"
	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/importer"
	"github.com/AzizElGhezal/NRIS/internal/registry"
	"github.com/AzizElGhezal/NRIS/internal/repository"
	"github.com/AzizElGhezal/NRIS/internal/service"
	"github.com/AzizElGhezal/NRIS/internal/thresholds"
	"github.com/AzizElGhezal/NRIS/pkg/report"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry store
	store, err := newStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open registry store")
	}
	defer store.Close()

	// Threshold provider
	provider, err := newProvider(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build threshold provider")
	}

	// Core services
	classifier := service.NewClassifierService(logger)
	reconciler := registry.NewReconciler(store, logger)

	deps := api.Dependencies{
		Extractor:  report.NewExtractor(cfg.Extraction, logger),
		Validator:  report.NewValidatorWithOptions(cfg.Extraction.AllowAlphanumericMRN),
		Classifier: classifier,
		Provider:   provider,
		Store:      store,
		Importer:   importer.NewBatchImporter(store, reconciler, classifier, provider, cfg.Import, logger),
	}

	// The reporting repositories need PostgreSQL; a SQLite deployment
	// runs without them.
	if cfg.Store.Driver == "postgres" {
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		deps.Patients = repository.NewPatientRepository(db.Pool, logger)
		deps.Results = repository.NewResultRepository(db.Pool, logger)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Server.Host,
		"port":   cfg.Server.Port,
		"driver": cfg.Store.Driver,
	}).Info("Starting NRIS server")

	server := api.NewServer(cfg, deps, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// newStore opens the configured registry backend, running migrations
// first on PostgreSQL.
func newStore(cfg *domain.Config, logger *logrus.Logger) (registry.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return registry.NewSQLiteStore(cfg.Store.SQLitePath)
	default:
		databaseURL := database.URL(cfg.Database)

		runner, err := database.NewMigrationRunner(databaseURL, cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, err
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, err
		}
		runner.Close()

		return registry.NewPostgresStoreFromURL(databaseURL)
	}
}

// newProvider builds the configured threshold provider.
func newProvider(configManager *config.Manager, logger *logrus.Logger) (thresholds.Provider, error) {
	cfg := configManager.GetConfig()
	if cfg.Thresholds.Source == "remote" {
		return thresholds.NewRemoteProvider(cfg.Thresholds, logger)
	}
	return thresholds.NewLocalProvider(configManager.ThresholdSet())
}
