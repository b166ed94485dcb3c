// Command nris-import runs a batch import of patient records from a
// JSON file against the registry, printing the per-record outcomes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/config"
	"github.com/AzizElGhezal/NRIS/internal/database"
	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/importer"
	"github.com/AzizElGhezal/NRIS/internal/registry"
	"github.com/AzizElGhezal/NRIS/internal/service"
	"github.com/AzizElGhezal/NRIS/internal/thresholds"
)

// batchFile is the on-disk input format.
type batchFile struct {
	Records []importer.Record `json:"records"`
}

func main() {
	var (
		file    = flag.String("file", "", "JSON batch file to import")
		workers = flag.Int("workers", 0, "worker pool size (0 uses the configured value)")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	records, err := readBatch(*file)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read batch file")
	}
	if len(records) == 0 {
		logger.Fatal("Batch file contains no records")
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open registry store")
	}
	defer store.Close()

	var provider thresholds.Provider
	if cfg.Thresholds.Source == "remote" {
		provider, err = thresholds.NewRemoteProvider(cfg.Thresholds, logger)
	} else {
		provider, err = thresholds.NewLocalProvider(configManager.ThresholdSet())
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to build threshold provider")
	}

	importCfg := cfg.Import
	if *workers > 0 {
		importCfg.Workers = *workers
	}

	classifier := service.NewClassifierService(logger)
	reconciler := registry.NewReconciler(store, logger)
	batch := importer.NewBatchImporter(store, reconciler, classifier, provider, importCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Interrupt received, stopping new records")
		cancel()
	}()

	summary := batch.Import(ctx, records)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.WithError(err).Fatal("Failed to encode summary")
	}
	fmt.Println(string(out))

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func readBatch(path string) ([]importer.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch batchFile
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	return batch.Records, nil
}

func newStore(cfg *domain.Config) (registry.Store, error) {
	if cfg.Store.Driver == "sqlite" {
		return registry.NewSQLiteStore(cfg.Store.SQLitePath)
	}
	return registry.NewPostgresStoreFromURL(database.URL(cfg.Database))
}
